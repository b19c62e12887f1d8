package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oneform/formroom/pkg/cli/internal/output"
	"github.com/oneform/formroom/pkg/config"
	"github.com/oneform/formroom/pkg/crypto"
	"github.com/oneform/formroom/pkg/store"
)

// initKeyName is the ID of the sealing key written by init.
const initKeyName = "k1"

var initFlags struct {
	output  string
	backend string
	addr    string
	baseURL string
	force   bool
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Write a configuration file with a fresh sealing key and token secret.

Run without --storage in a terminal to answer the questions interactively.
The file holds secrets and is created with mode 0600.`,
	Example: `  formroom init
  formroom init --storage sqlite --addr :9000 -o /etc/formroom.yaml`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initFlags.output, "output", "o", "formroom.yaml", "Configuration file to write")
	initCmd.Flags().StringVar(&initFlags.backend, "storage", store.BackendFile, "Storage backend (memory, file, sqlite, redis)")
	initCmd.Flags().StringVar(&initFlags.addr, "addr", ":8080", "Listen address")
	initCmd.Flags().StringVar(&initFlags.baseURL, "public-url", "http://localhost:8080", "Base URL used in invite links")
	initCmd.Flags().BoolVarP(&initFlags.force, "force", "f", false, "Overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if !cmd.Flags().Changed("storage") && isTerminal(cmd.InOrStdin()) {
		if err := askInit(); err != nil {
			return err
		}
	}

	if !initFlags.force {
		if _, err := os.Stat(initFlags.output); err == nil {
			return fmt.Errorf("%w: %s (use --force to overwrite)", ErrConfigExists, initFlags.output)
		}
	}

	cfg, err := starterConfig(initFlags.backend, initFlags.addr, initFlags.baseURL)
	if err != nil {
		return err
	}
	data, err := encodeConfig(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(initFlags.output, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if jsonOutput {
		return output.JSON(cmd.OutOrStdout(), map[string]string{
			"path":    initFlags.output,
			"storage": cfg.Storage.Backend,
			"keyId":   initKeyName,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (storage: %s)\n", initFlags.output, cfg.Storage.Backend)
	fmt.Fprintf(cmd.OutOrStdout(), "Start the server with: formroom serve -c %s\n", initFlags.output)
	return nil
}

func askInit() error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should forms and rooms be stored?").
				Options(
					huh.NewOption("JSON file", store.BackendFile),
					huh.NewOption("SQLite", store.BackendSQLite),
					huh.NewOption("Redis", store.BackendRedis),
					huh.NewOption("Memory (lost on restart)", store.BackendMemory),
				).
				Value(&initFlags.backend),
			huh.NewInput().
				Title("Listen address").
				Value(&initFlags.addr).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("address is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Public base URL for invite links").
				Value(&initFlags.baseURL).
				Validate(func(s string) error {
					u, err := url.Parse(s)
					if err != nil || u.Scheme == "" || u.Host == "" {
						return errors.New("must be an absolute URL")
					}
					return nil
				}),
			huh.NewInput().
				Title("Write configuration to").
				Value(&initFlags.output),
		),
	)
	return form.Run()
}

// starterConfig builds a valid configuration with generated secrets.
func starterConfig(backend, addr, baseURL string) (*config.Config, error) {
	cfg := config.Default()
	cfg.Server.Addr = addr
	cfg.Server.PublicBaseURL = baseURL
	cfg.Storage.Backend = backend

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	cfg.Crypto.ActiveKey = initKeyName
	cfg.Crypto.Keys = map[string]string{initKeyName: key}

	secret, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	cfg.Identity.Secret = secret

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func encodeConfig(cfg *config.Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# formroom configuration. Keep this file private.\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
