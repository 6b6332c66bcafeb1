package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/slurmterm/internal/config"
	"github.com/rileyhilliard/slurmterm/internal/errors"
	"github.com/rileyhilliard/slurmterm/internal/exec"
	"github.com/rileyhilliard/slurmterm/internal/logger"
	"github.com/rileyhilliard/slurmterm/internal/slurm"
)

// demoCluster is the cluster name shown in demo mode.
const demoCluster = "demo-cluster"

// sourceFlags pick where Slurm data comes from. They are shared by every
// command that talks to the cluster.
type sourceFlags struct {
	Demo bool
	User string
	Host string
}

// addSourceFlags registers --demo, --user and --host as persistent flags.
func addSourceFlags(cmd *cobra.Command, flags *sourceFlags) {
	cmd.PersistentFlags().BoolVar(&flags.Demo, "demo", false, "use a simulated cluster instead of Slurm")
	cmd.PersistentFlags().StringVar(&flags.User, "user", "", "show jobs of this user (default: current user)")
	cmd.PersistentFlags().StringVar(&flags.Host, "host", "", "SSH alias of a login node to run Slurm tools on")
}

// loadConfig loads the config file and applies command-line overrides.
// Overrides are validated along with the rest of the config.
func loadConfig(path string, flags sourceFlags, since string, log logger.Logger) (*config.Config, error) {
	cfg, found, err := config.LoadOrDefault(path, log)
	if err != nil {
		return nil, err
	}
	if found != "" {
		log.Debug("config loaded from %s", found)
	}

	if flags.User != "" {
		cfg.General.User = flags.User
	}
	if flags.Host != "" {
		cfg.General.LoginHost = flags.Host
	}
	if since != "" {
		cfg.General.HistoryWindow = since
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// clusterSource is an open slurm.Source plus whatever must be released
// when the command finishes.
type clusterSource struct {
	slurm.Source
	Cluster string
	closer  func() error
}

// Close releases the SSH connection or the demo log directory.
func (c *clusterSource) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// openSource builds the Source for cfg: the simulator in demo mode, the
// Slurm tools on cfg's login host over SSH, or the local Slurm tools.
func openSource(cfg *config.Config, demo bool, log logger.Logger) (*clusterSource, error) {
	if demo {
		opts := []slurm.SimOption{slurm.SimLogger(log)}
		if cfg.General.User != "" {
			opts = append(opts, slurm.SimUser(cfg.General.User))
		}
		sim, err := slurm.NewSimulator(opts...)
		if err != nil {
			return nil, err
		}
		return &clusterSource{Source: sim, Cluster: demoCluster, closer: sim.Close}, nil
	}

	var runner exec.Runner
	if host := cfg.General.LoginHost; host != "" {
		ssh, err := exec.DialSSH(host, cfg.General.SubprocessTimeout)
		if err != nil {
			return nil, err
		}
		log.Info("running Slurm tools on %s", ssh.Describe())
		runner = ssh
	} else {
		runner = exec.NewLocal()
	}

	src := slurm.NewCLISource(runner,
		slurm.WithTimeout(cfg.General.SubprocessTimeout),
		slurm.WithUser(cfg.ResolveUser()),
		slurm.WithGPUCommand(cfg.GPU.Command),
		slurm.WithLogger(log),
	)
	return &clusterSource{Source: src, closer: runner.Close}, nil
}

// parseParams turns repeated --param key=value flags into sbatch options.
// A bare key is a flag option such as "exclusive".
func parseParams(raw []string) ([]slurm.Param, error) {
	params := make([]slurm.Param, 0, len(raw))
	for _, r := range raw {
		key, value, _ := strings.Cut(r, "=")
		p := slurm.Param{Key: strings.TrimSpace(strings.TrimLeft(key, "-")), Value: value}
		if err := slurm.ValidateParam(p); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrValidation,
				fmt.Sprintf("Invalid --param %q", r),
				"Use key=value, e.g. --param partition=gpu")
		}
		params = append(params, p)
	}
	return params, nil
}
