package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"
	"github.com/spf13/cobra"

	"github.com/bft-labs/flightrec/internal/cliconfig"
	"github.com/bft-labs/flightrec/pkg/flightrec"
)

const controllerKey = "$controller"

var consoleCmds = []*ishell.Cmd{
	&ArmCmd,
	&TriggerCmd,
	&StopCmd,
	&StatusCmd,
	&RefCmd,
	&TuneCmd,
	&PolicyCmd,
}

func newConsoleCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "console [COMMAND ARGS...]",
		Short: "Run the recorder with an interactive control shell",
		Long: "Run the recorder with an interactive control shell. With arguments, run " +
			"that single command against a freshly started recorder and exit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile, err := loadConfig(cmd, cfg, *cfgPath)
			if err != nil {
				return err
			}
			rt, closeOutputs, err := cliconfig.Build(*cfg, cfgFile)
			if err != nil {
				return err
			}
			defer closeOutputs()

			if err := rt.Start(cmd.Context()); err != nil {
				return fmt.Errorf("start runtime: %w", err)
			}
			defer rt.Stop()

			shell := newShell(rt)
			if len(args) > 0 {
				return shell.Process(args...)
			}
			shell.Run()
			return nil
		},
	}
}

// newShell returns a shell whose commands drive ctl.
func newShell(ctl flightrec.Controller) *ishell.Shell {
	s := ishell.New()
	s.Set(controllerKey, ctl)
	s.SetPrompt("flightrec > ")
	for _, cmd := range consoleCmds {
		s.AddCmd(cmd)
	}
	return s
}

func controllerFrom(c *ishell.Context) flightrec.Controller {
	return c.Get(controllerKey).(flightrec.Controller)
}

func parseUint32(s, what string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", what, err)
	}
	return uint32(v), nil
}

func reportErr(c *ishell.Context, err error) {
	if err != nil {
		c.Err(err)
		return
	}
	c.Println("OK")
}

var (
	// ArmCmd starts a new capture.
	ArmCmd = ishell.Cmd{
		Name:    "arm",
		Aliases: []string{"a"},
		Help:    "start a new capture",
		Func: func(c *ishell.Context) {
			reportErr(c, controllerFrom(c).Arm())
		},
	}

	// TriggerCmd fires the trigger of the armed capture.
	TriggerCmd = ishell.Cmd{
		Name:    "trigger",
		Aliases: []string{"t"},
		Help:    "fire the trigger",
		Func: func(c *ishell.Context) {
			reportErr(c, controllerFrom(c).Trigger())
		},
	}

	// StopCmd closes the capture window early.
	StopCmd = ishell.Cmd{
		Name: "stop",
		Help: "close the capture window now",
		Func: func(c *ishell.Context) {
			reportErr(c, controllerFrom(c).StopCapture())
		},
	}

	// StatusCmd prints runtime counters.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"s"},
		Help:    "print runtime counters",
		Func: func(c *ishell.Context) {
			out, err := json.MarshalIndent(controllerFrom(c).Snapshot(), "", "  ")
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(string(out))
		},
	}

	// RefCmd sets the current reference.
	RefCmd = ishell.Cmd{
		Name: "ref",
		Help: "AMPS",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("AMPS required"))
				return
			}
			val, err := strconv.ParseFloat(c.Args[0], 32)
			if err != nil {
				c.Err(fmt.Errorf("invalid AMPS: %v", err))
				return
			}
			controllerFrom(c).SetReference(float32(val))
			c.Println("OK")
		},
	}

	// TuneCmd changes the LOG budget.
	TuneCmd = ishell.Cmd{
		Name: "tune",
		Help: "STEP [MAX]",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("STEP required"))
				return
			}
			step, err := parseUint32(c.Args[0], "STEP")
			if err != nil {
				c.Err(err)
				return
			}
			ctl := controllerFrom(c)
			budgetMax := ctl.Snapshot().BudgetMax
			if len(c.Args) > 1 {
				if budgetMax, err = parseUint32(c.Args[1], "MAX"); err != nil {
					c.Err(err)
					return
				}
			}
			ctl.Tune(step, budgetMax)
			c.Println("OK")
		},
	}

	// PolicyCmd changes the automatic trigger conditions.
	PolicyCmd = ishell.Cmd{
		Name: "policy",
		Help: "AFTER_PERIODS [LEVEL_AMPS]",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("AFTER_PERIODS required"))
				return
			}
			after, err := parseUint32(c.Args[0], "AFTER_PERIODS")
			if err != nil {
				c.Err(err)
				return
			}
			ctl := controllerFrom(c)
			level := ctl.Snapshot().TriggerLevel
			if len(c.Args) > 1 {
				if level, err = strconv.ParseFloat(c.Args[1], 64); err != nil {
					c.Err(fmt.Errorf("invalid LEVEL_AMPS: %v", err))
					return
				}
			}
			ctl.SetTriggerPolicy(after, level)
			c.Println("OK")
		},
	}
)
