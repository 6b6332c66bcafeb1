package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/slurmterm/internal/config"
	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/pkg/sshutil"
)

// configInitOptions are the config init command's inputs.
type configInitOptions struct {
	Path           string
	Force          bool
	NonInteractive bool
	PickHost       bool
}

var configInitOpts configInitOptions

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or inspect the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Long: `Write ~/.config/slurmterm/config.yaml (or the --config path) with the
default settings, ready to edit.

--pick-host lists the hosts in ~/.ssh/config that have a key and stores
the chosen one as general.login_host, so Slurm commands run there.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := configInitOpts
		opts.Path = cfgFile
		return configInitCommand(cmd.OutOrStdout(), opts)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowCommand(cmd.OutOrStdout(), cfgFile)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)
	configInitCmd.Flags().BoolVar(&configInitOpts.Force, "force", false, "overwrite an existing config file")
	configInitCmd.Flags().BoolVar(&configInitOpts.NonInteractive, "non-interactive", false, "never prompt; fail if the file exists")
	configInitCmd.Flags().BoolVar(&configInitOpts.PickHost, "pick-host", false, "choose the cluster login host from ~/.ssh/config")
}

// confirmOverwrite asks before replacing an existing config. Tests replace it.
var confirmOverwrite = func(path string) (bool, error) {
	var overwrite bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Config file '%s' already exists. Overwrite?", path)).
				Value(&overwrite),
		),
	)
	if err := form.Run(); err != nil {
		return false, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Try running with --force to overwrite")
	}
	return overwrite, nil
}

// pickLoginHost asks which SSH host is the login node. Tests replace it.
var pickLoginHost = func(hosts []sshutil.HostEntry) (string, error) {
	options := make([]huh.Option[string], 0, len(hosts)+1)
	options = append(options, huh.NewOption("(run Slurm commands locally)", ""))
	for _, h := range hosts {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%s)", h.Alias, h.Description()), h.Alias))
	}

	var chosen string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Cluster login host").
				Options(options...).
				Value(&chosen),
		),
	)
	if err := form.Run(); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Set general.login_host in the config file by hand")
	}
	return chosen, nil
}

// chooseLoginHost offers the SSH hosts that have a usable key.
func chooseLoginHost() (string, error) {
	hosts, err := sshutil.KnownHosts()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't read ~/.ssh/config",
			"Fix the SSH config or set general.login_host by hand")
	}
	hosts = sshutil.WithKeys(hosts)
	if len(hosts) == 0 {
		return "", errors.New(errors.ErrConfig,
			"No SSH hosts with keys found in ~/.ssh/config",
			"Add a Host entry for your login node, or set general.login_host by hand")
	}
	return pickLoginHost(hosts)
}

func configInitCommand(w io.Writer, opts configInitOptions) error {
	path := opts.Path
	if path == "" {
		path = config.DefaultPath()
	}
	if path == "" {
		return errors.New(errors.ErrConfig,
			"Couldn't work out where to put the config file",
			"Pass a path with --config")
	}
	if opts.PickHost && opts.NonInteractive {
		return errors.New(errors.ErrValidation,
			"--pick-host needs to prompt",
			"Drop --non-interactive, or set general.login_host by hand")
	}

	if _, err := os.Stat(path); err == nil && !opts.Force {
		if opts.NonInteractive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", path),
				"Use --force to overwrite")
		}
		overwrite, err := confirmOverwrite(path)
		if err != nil {
			return err
		}
		if !overwrite {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	if opts.PickHost {
		host, err := chooseLoginHost()
		if err != nil {
			return err
		}
		cfg.General.LoginHost = host
	}

	if err := config.Write(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote %s\n", path)
	return nil
}

// configShowCommand prints the config slurmterm would run with, reporting
// where it came from.
func configShowCommand(w io.Writer, explicit string) error {
	path, err := config.Find(explicit)
	if err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	source := "built-in defaults"
	if path != "" {
		if cfg, err = config.Load(path); err != nil {
			return err
		}
		if err := config.Validate(cfg); err != nil {
			return err
		}
		source = path
	}

	data, err := config.Marshal(cfg)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Failed to render config", "")
	}
	fmt.Fprintf(w, "# source: %s\n", source)
	_, err = w.Write(data)
	return err
}
