package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/qserverless/gatewayenv/internal/config"
	"github.com/qserverless/gatewayenv/internal/crypto"
	"github.com/qserverless/gatewayenv/internal/envvars"
	localexec "github.com/qserverless/gatewayenv/internal/executor/local"
	"github.com/qserverless/gatewayenv/internal/store"
	"github.com/qserverless/gatewayenv/pkg/types"
)

var errUnknownCommand = errors.New("unknown command")

type app struct {
	cfg    *types.Config
	logger *zap.Logger
	stdin  io.Reader
	stdout io.Writer
}

func newApp(cfg *types.Config, logger *zap.Logger, stdin io.Reader, stdout io.Writer) *app {
	return &app{cfg: cfg, logger: logger, stdin: stdin, stdout: stdout}
}

func (a *app) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "build":
		return a.build(ctx, args)
	case "decrypt":
		return a.decrypt(ctx, args)
	case "env":
		return a.env(ctx, args)
	case "run":
		return a.run(ctx, args)
	case "list":
		return a.list(ctx, args)
	case "delete":
		return a.delete(ctx, args)
	case "encrypt-string":
		return a.encryptString(args)
	case "decrypt-string":
		return a.decryptString(args)
	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, command)
	}
}

func (a *app) codec() (*envvars.Codec, error) {
	return envvars.NewCodecFromConfig(a.cfg, a.logger)
}

func (a *app) openStore() (*store.Store, error) {
	return store.Open(a.cfg.Store.Path, a.logger)
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) build(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	token := fs.String("token", "", "Gateway token of the submitting user")
	jobID := fs.String("job", "", "Job id")
	rawArgs := fs.String("args", "{}", "Program arguments as JSON")
	save := fs.Bool("store", false, "Persist the encrypted environment")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *jobID == "" {
		return fmt.Errorf("-job is required")
	}

	arguments, err := types.ParseValue([]byte(*rawArgs))
	if err != nil {
		return fmt.Errorf("invalid -args: %w", err)
	}

	builder, err := envvars.NewBuilder(a.cfg, a.logger)
	if err != nil {
		return err
	}
	codec, err := a.codec()
	if err != nil {
		return err
	}

	bundle := builder.Build(envvars.Token(*token), envvars.JobRef{ID: *jobID}, envvars.ProgramRef{Arguments: arguments})
	encrypted, err := codec.EncryptBundle(bundle)
	if err != nil {
		return err
	}

	if *save {
		s, err := a.openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Save(ctx, *jobID, encrypted); err != nil {
			return err
		}
		a.logger.Info("stored job environment", zap.String("job_id", *jobID), zap.String("store", s.Path()))
	}

	return a.writeJSON(encrypted)
}

// loadBundle decrypts the environment of jobID from the store, or the
// encrypted bundle JSON on stdin when jobID is empty.
func (a *app) loadBundle(ctx context.Context, jobID string) (types.Bundle, error) {
	var encrypted *types.EncryptedBundle
	if jobID != "" {
		s, err := a.openStore()
		if err != nil {
			return nil, err
		}
		defer s.Close()
		if encrypted, err = s.Load(ctx, jobID); err != nil {
			return nil, err
		}
	} else {
		encrypted = &types.EncryptedBundle{}
		if err := json.NewDecoder(a.stdin).Decode(encrypted); err != nil {
			return nil, fmt.Errorf("failed to read encrypted bundle: %w", err)
		}
	}

	codec, err := a.codec()
	if err != nil {
		return nil, err
	}
	return codec.DecryptBundle(encrypted)
}

func (a *app) decrypt(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("decrypt", flag.ContinueOnError)
	jobID := fs.String("job", "", "Load the environment of this job from the store instead of stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	bundle, err := a.loadBundle(ctx, *jobID)
	if err != nil {
		return err
	}
	return a.writeJSON(bundle)
}

func (a *app) env(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("env", flag.ContinueOnError)
	jobID := fs.String("job", "", "Load the environment of this job from the store instead of stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	bundle, err := a.loadBundle(ctx, *jobID)
	if err != nil {
		return err
	}
	lines, err := localexec.Environ(nil, bundle)
	if err != nil {
		return err
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(a.stdout, l); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	jobID := fs.String("job", "", "Job whose stored environment the worker receives")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *jobID == "" {
		return fmt.Errorf("-job is required")
	}
	command := fs.Args()
	if len(command) == 0 {
		return fmt.Errorf("no worker command given")
	}

	bundle, err := a.loadBundle(ctx, *jobID)
	if err != nil {
		return err
	}

	executor := localexec.NewExecutor(&a.cfg.Executor, a.logger)
	result, err := executor.Run(ctx, *jobID, bundle, command[0], command[1:]...)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(a.stdout, result.Output); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("worker interrupted: %w", ctx.Err())
	}
	if !result.Success {
		return fmt.Errorf("worker exited with code %d", result.ExitCode)
	}
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	records, err := s.List(ctx)
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Fprintf(a.stdout, "%s\t%s\t%d\t%s\n", r.JobID, r.Scheme, r.Variables, r.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

func (a *app) delete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	jobID := fs.String("job", "", "Job id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Delete(ctx, *jobID)
}

func (a *app) readInput() (string, error) {
	data, err := io.ReadAll(a.stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSuffix(string(data), "\n"), nil
}

func (a *app) cipher() (crypto.Cipher, error) {
	return crypto.NewCipher(a.cfg.Crypto, crypto.ConfigSecret(&a.cfg.Crypto))
}

func (a *app) encryptString(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("encrypt-string reads stdin and takes no arguments")
	}
	c, err := a.cipher()
	if err != nil {
		return err
	}
	in, err := a.readInput()
	if err != nil {
		return err
	}
	out, err := c.EncryptString(in)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.stdout, out)
	return err
}

func (a *app) decryptString(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("decrypt-string reads stdin and takes no arguments")
	}
	c, err := a.cipher()
	if err != nil {
		return err
	}
	in, err := a.readInput()
	if err != nil {
		return err
	}
	out, err := c.DecryptString(strings.TrimSpace(in))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.stdout, out)
	return err
}

// initialize writes a config file and a fresh secret key file under path.
func initialize(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	projectPath := fs.String("path", ".", "Directory to initialize")
	if err := fs.Parse(args); err != nil {
		return err
	}

	absPath, err := filepath.Abs(*projectPath)
	if err != nil {
		return err
	}

	dir := filepath.Join(absPath, ".gatewayenv")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create .gatewayenv directory: %w", err)
	}

	cfg := types.DefaultConfig()
	cfg.Crypto.SecretKeyFile = filepath.Join(dir, "secret.key")
	cfg.Store.Path = filepath.Join(dir, "gatewayenv.db")

	if _, err := crypto.GenerateSecretFile(cfg.Crypto.SecretKeyFile); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Secret key: %s\n", cfg.Crypto.SecretKeyFile)

	configPath := filepath.Join(absPath, "gatewayenv.yaml")
	if err := config.Write(cfg, configPath); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Created config: %s\n", configPath)

	s, err := store.Open(cfg.Store.Path, nil)
	if err != nil {
		return err
	}
	if err := s.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Created store: %s\n", cfg.Store.Path)

	return nil
}
