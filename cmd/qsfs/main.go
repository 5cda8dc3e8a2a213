// Command qsfs seals and unseals QSFS containers from the shell: key
// generation, sealing, unsealing, and trust-database maintenance.
// Grounded on jrick-ss/ss.go's os.Args[1] dispatch to one flag.NewFlagSet
// per subcommand, with the os/log.Fatal error boundary kept at main().
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/qsfs/qsfs"
	"github.com/qsfs/qsfs/internal/header"
	"github.com/qsfs/qsfs/internal/pq"
	"github.com/qsfs/qsfs/internal/signer"
	"github.com/qsfs/qsfs/internal/trustdb"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage of %s:
  %[1]s keygen [-id id] [-hybrid] [-sign]
  %[1]s seal -recipient id[,id...] [-suite suite] [-chunk-size bytes] [-sign id | -unsigned] [-v20] -in path -out path
  %[1]s unseal -id id [-allow-unsigned] [-trust-any] -in path -out path
  %[1]s trust add -id hex -pubkey path [-note text]
  %[1]s trust remove -id hex
  %[1]s trust list
`, filepath.Base(os.Args[0]))
	os.Exit(2)
}

func init() {
	flag.Usage = usage
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

func main() {
	flag.Parse()
	if len(os.Args) < 2 {
		usage()
	}

	var err error
	switch os.Args[1] {
	case "keygen":
		err = keygen(os.Args[2:])
	case "seal":
		err = sealCmd(os.Args[2:])
	case "unseal":
		err = unsealCmd(os.Args[2:])
	case "trust":
		err = trustCmd(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "no command %q\n", os.Args[1])
		usage()
	}
	if err != nil {
		log.Fatal(err)
	}
}

// appDir returns the OS-appropriate base directory for qsfs's keys and
// trust database, grounded on
// simonovic86-seal-cli/internal/seal/storage.go's GetSealBaseDir.
func appDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot get home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", "qsfs"), nil
	case "windows":
		appData := os.Getenv("AppData")
		if appData == "" {
			return "", fmt.Errorf("AppData environment variable not set")
		}
		return filepath.Join(appData, "qsfs"), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "qsfs"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot get home directory: %w", err)
		}
		return filepath.Join(home, ".local", "share", "qsfs"), nil
	}
}

func ensureAppDir() (string, error) {
	dir, err := appDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create app dir: %w", err)
	}
	return dir, nil
}

func keyPaths(dir, id string) (mlkemPub, mlkemSec, x25519Pub, x25519Sec, mldsaPub, mldsaSec string) {
	return filepath.Join(dir, id+".mlkem.public"),
		filepath.Join(dir, id+".mlkem.secret"),
		filepath.Join(dir, id+".x25519.public"),
		filepath.Join(dir, id+".x25519.secret"),
		filepath.Join(dir, id+".mldsa.public"),
		filepath.Join(dir, id+".mldsa.secret")
}

func keygen(args []string) error {
	fs := flag.NewFlagSet("qsfs keygen", flag.ExitOnError)
	id := fs.String("id", "default", "identity name")
	hybrid := fs.Bool("hybrid", false, "also generate an X25519 keypair for hybrid mode")
	sign := fs.Bool("sign", false, "also generate an ML-DSA-87 signing keypair")
	fs.Parse(args)

	dir, err := ensureAppDir()
	if err != nil {
		return err
	}
	mlkemPub, mlkemSec, x25519Pub, x25519Sec, mldsaPub, mldsaSec := keyPaths(dir, *id)

	kp, err := pq.GenerateMLKEMKeypair()
	if err != nil {
		return fmt.Errorf("generate ML-KEM-1024 keypair: %w", err)
	}
	if err := writeKeyFiles(mlkemPub, mlkemSec, kp.PublicKey, kp.SecretKey.Bytes()); err != nil {
		return err
	}
	log.Printf("wrote %s", mlkemPub)
	log.Printf("wrote %s", mlkemSec)

	if *hybrid {
		xkp, err := pq.GenerateX25519Keypair()
		if err != nil {
			return fmt.Errorf("generate X25519 keypair: %w", err)
		}
		if err := writeKeyFiles(x25519Pub, x25519Sec, xkp.PublicKey, xkp.SecretKey.Bytes()); err != nil {
			return err
		}
		log.Printf("wrote %s", x25519Pub)
		log.Printf("wrote %s", x25519Sec)
	}

	if *sign {
		signKP, err := pq.GenerateMLDSAKeypair()
		if err != nil {
			return fmt.Errorf("generate ML-DSA-87 signer: %w", err)
		}
		if err := writeKeyFiles(mldsaPub, mldsaSec, signKP.PublicKey, signKP.SecretKey.Bytes()); err != nil {
			return err
		}
		log.Printf("wrote %s", mldsaPub)
		log.Printf("wrote %s", mldsaSec)
		log.Printf("signer id: %x", signer.New(signKP).ID())
	}

	return nil
}

func writeKeyFiles(pubPath, secPath string, pub, sec []byte) error {
	if err := os.WriteFile(pubPath, pub, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", pubPath, err)
	}
	if err := os.WriteFile(secPath, sec, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", secPath, err)
	}
	return nil
}

// localSigner returns the host's default ML-DSA-87 signing identity,
// generating and persisting one on first use. Grounded on
// original_source's auto_provision_signer: a caller that never supplies a
// signer still ends up sealing signed containers, matching the original's
// assumption that "no signer configured" means "use the local one," not
// "skip signing."
func localSigner(dir string) (*pq.MLDSAKeypair, error) {
	pubPath, secPath := filepath.Join(dir, "local.mldsa.public"), filepath.Join(dir, "local.mldsa.secret")
	pub, pubErr := os.ReadFile(pubPath)
	sec, secErr := os.ReadFile(secPath)
	if pubErr == nil && secErr == nil {
		return pq.NewMLDSAKeypairFromBytes(pub, sec)
	}

	kp, err := pq.GenerateMLDSAKeypair()
	if err != nil {
		return nil, fmt.Errorf("generate local signer: %w", err)
	}
	if err := writeKeyFiles(pubPath, secPath, kp.PublicKey, kp.SecretKey.Bytes()); err != nil {
		return nil, err
	}
	qsfs.Log.WithField("signer_id", fmt.Sprintf("%x", signer.New(kp).ID())).Info("auto-provisioned local signer")
	return kp, nil
}

func parseSuite(name string) (header.SuiteID, error) {
	switch name {
	case "", "aes256-gcm-siv":
		return header.SuiteAES256GCMSIV, nil
	case "aes256-gcm":
		return header.SuiteAES256GCM, nil
	case "chacha20poly1305":
		return header.SuiteChaCha20Poly1305, nil
	default:
		return 0, fmt.Errorf("unknown suite %q", name)
	}
}

func sealCmd(args []string) error {
	fs := flag.NewFlagSet("qsfs seal", flag.ExitOnError)
	recipients := fs.String("recipient", "", "comma-separated recipient identity names")
	suiteName := fs.String("suite", "", "AEAD suite (aes256-gcm, aes256-gcm-siv, chacha20poly1305)")
	chunkSize := fs.Int("chunk-size", 128*1024, "plaintext chunk size in bytes")
	signID := fs.String("sign", "", "identity name whose ML-DSA-87 key signs the header")
	unsigned := fs.Bool("unsigned", false, "write an unsigned container instead of auto-provisioning a local signer")
	useV20 := fs.Bool("v20", false, "write the legacy v2.0 format (no per-file kdf_salt)")
	in := fs.String("in", "", "input file path")
	out := fs.String("out", "", "output container path")
	fs.Parse(args)

	if *recipients == "" || *in == "" || *out == "" {
		fs.Usage()
		return fmt.Errorf("-recipient, -in, and -out are required")
	}

	opID := uuid.New().String()
	qsfs.Log.WithField("op_id", opID).Info("seal starting")

	dir, err := appDir()
	if err != nil {
		return err
	}

	suite, err := parseSuite(*suiteName)
	if err != nil {
		return err
	}

	var opts []qsfs.SealOption
	opts = append(opts, qsfs.WithSuite(suite), qsfs.WithChunkSize(*chunkSize))
	if *useV20 {
		opts = append(opts, qsfs.WithFormatVersion(qsfs.FormatV20))
	}

	for _, id := range strings.Split(*recipients, ",") {
		mlkemPub, _, x25519Pub, _, _, _ := keyPaths(dir, id)
		pub, err := os.ReadFile(mlkemPub)
		if err != nil {
			return fmt.Errorf("read ML-KEM public key for %q: %w", id, err)
		}
		recipient := qsfs.Recipient{Label: id, MLKEMPublic: pub}
		if xpub, err := os.ReadFile(x25519Pub); err == nil {
			recipient.X25519Public = xpub
		}
		opts = append(opts, qsfs.WithRecipient(recipient))
	}

	switch {
	case *signID != "":
		_, _, _, _, mldsaPub, mldsaSec := keyPaths(dir, *signID)
		pub, err := os.ReadFile(mldsaPub)
		if err != nil {
			return fmt.Errorf("read ML-DSA-87 public key for %q: %w", *signID, err)
		}
		sec, err := os.ReadFile(mldsaSec)
		if err != nil {
			return fmt.Errorf("read ML-DSA-87 secret key for %q: %w", *signID, err)
		}
		kp, err := pq.NewMLDSAKeypairFromBytes(pub, sec)
		if err != nil {
			return fmt.Errorf("reconstruct ML-DSA-87 keypair for %q: %w", *signID, err)
		}
		opts = append(opts, qsfs.WithSigner(signer.New(kp)))
	case !*unsigned:
		kp, err := localSigner(dir)
		if err != nil {
			return fmt.Errorf("auto-provision local signer: %w", err)
		}
		opts = append(opts, qsfs.WithSigner(signer.New(kp)))
	}

	if err := qsfs.SealFile(*out, *in, opts...); err != nil {
		return fmt.Errorf("seal: %w", err)
	}
	qsfs.Log.WithField("op_id", opID).Info("seal complete")
	return nil
}

func unsealCmd(args []string) error {
	fs := flag.NewFlagSet("qsfs unseal", flag.ExitOnError)
	id := fs.String("id", "default", "identity name holding the secret key")
	allowUnsigned := fs.Bool("allow-unsigned", false, "accept a container with no signature")
	trustAny := fs.Bool("trust-any", false, "skip the trust database for a verified signature")
	in := fs.String("in", "", "input container path")
	out := fs.String("out", "", "output plaintext path")
	fs.Parse(args)

	if *in == "" || *out == "" {
		fs.Usage()
		return fmt.Errorf("-in and -out are required")
	}

	opID := uuid.New().String()
	qsfs.Log.WithField("op_id", opID).Info("unseal starting")

	dir, err := appDir()
	if err != nil {
		return err
	}
	mlkemPub, mlkemSec, _, x25519Sec, _, _ := keyPaths(dir, *id)

	pub, err := os.ReadFile(mlkemPub)
	if err != nil {
		return fmt.Errorf("read ML-KEM public key: %w", err)
	}
	sec, err := os.ReadFile(mlkemSec)
	if err != nil {
		return fmt.Errorf("read ML-KEM secret key: %w", err)
	}
	kp, err := pq.NewMLKEMKeypairFromBytes(pub, sec)
	if err != nil {
		return fmt.Errorf("reconstruct ML-KEM keypair: %w", err)
	}

	opts := []qsfs.UnsealOption{
		qsfs.WithMLKEMSecret(kp),
		qsfs.WithAllowUnsigned(*allowUnsigned),
		qsfs.WithTrustAnySigner(*trustAny),
	}

	if xsec, err := os.ReadFile(x25519Sec); err == nil {
		xpub, pubErr := os.ReadFile(strings.TrimSuffix(x25519Sec, ".secret") + ".public")
		if pubErr == nil {
			xkp, err := pq.NewX25519KeypairFromBytes(xpub, xsec)
			if err != nil {
				return fmt.Errorf("reconstruct X25519 keypair: %w", err)
			}
			opts = append(opts, qsfs.WithX25519Secret(xkp))
		}
	}

	if !*trustAny {
		store, err := openTrustStore(dir)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, qsfs.WithTrustStore(store))
	}

	if err := qsfs.UnsealFile(*out, *in, opts...); err != nil {
		return fmt.Errorf("unseal: %w", err)
	}
	qsfs.Log.WithField("op_id", opID).Info("unseal complete")
	return nil
}

func openTrustStore(dir string) (*trustdb.Store, error) {
	return trustdb.Open(trustdb.Config{Path: filepath.Join(dir, "trust.db"), Logger: qsfs.Log})
}

func trustCmd(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("trust requires a subcommand: add, remove, list")
	}
	dir, err := ensureAppDir()
	if err != nil {
		return err
	}
	store, err := openTrustStore(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	switch args[0] {
	case "add":
		fs := flag.NewFlagSet("qsfs trust add", flag.ExitOnError)
		idHex := fs.String("id", "", "hex-encoded signer id")
		pubkeyPath := fs.String("pubkey", "", "path to the signer's ML-DSA-87 public key")
		note := fs.String("note", "", "note")
		fs.Parse(args[1:])
		signerID, err := decodeSignerID(*idHex)
		if err != nil {
			return err
		}
		pub, err := os.ReadFile(*pubkeyPath)
		if err != nil {
			return fmt.Errorf("read public key: %w", err)
		}
		if err := store.Add(signerID, pub, *note); err != nil {
			return fmt.Errorf("trust add: %w", err)
		}
		log.Printf("trusted %x", signerID)
		return nil

	case "remove":
		fs := flag.NewFlagSet("qsfs trust remove", flag.ExitOnError)
		idHex := fs.String("id", "", "hex-encoded signer id")
		fs.Parse(args[1:])
		signerID, err := decodeSignerID(*idHex)
		if err != nil {
			return err
		}
		removed, err := store.Remove(signerID)
		if err != nil {
			return fmt.Errorf("trust remove: %w", err)
		}
		if removed {
			log.Printf("removed %x", signerID)
		} else {
			log.Printf("%x was not trusted", signerID)
		}
		return nil

	case "list":
		entries, err := store.List()
		if err != nil {
			return fmt.Errorf("trust list: %w", err)
		}
		for _, e := range entries {
			fmt.Printf("%s\t%s\t%s\n", e.SignerID, e.AddedAt.UTC().Format("2006-01-02T15:04:05Z"), e.Note)
		}
		return nil

	default:
		return fmt.Errorf("unknown trust subcommand %q", args[0])
	}
}

func decodeSignerID(hexStr string) ([32]byte, error) {
	var id [32]byte
	b, err := hex.DecodeString(hexStr)
	if err != nil || len(b) != 32 {
		return id, fmt.Errorf("invalid signer id %q: must be 64 hex characters", hexStr)
	}
	copy(id[:], b)
	return id, nil
}
