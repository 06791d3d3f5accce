package main

import (
	"os"

	"github.com/igor-laevsky/gojvm-core/pkg/classmanager"
	"github.com/igor-laevsky/gojvm-core/pkg/native"
	"github.com/igor-laevsky/gojvm-core/pkg/vmerrors"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <main-class>",
	Short: "Load a class, run its main entry method, and print the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := buildClassManager()
		if err != nil {
			return err
		}

		className := args[0]
		cls, err := mgr.GetClass(className)
		if err != nil {
			return err
		}

		entry := cls.FindMethod("main", "()I")
		if entry == nil {
			return vmerrors.NewRuntimeError("%s has no main()I entry method", className)
		}

		if _, err := mgr.GetClassObject(className); err != nil {
			return err
		}

		result, err := mgr.ExecuteMethod(cls, entry, nil)
		if err != nil {
			return err
		}

		native.NewReporter(os.Stdout).PrintResult(entry, result)
		return nil
	},
}

// buildClassManager wires the bootstrap jmod loader and a chain of
// classpath DirLoaders, each delegating to the one before it, mirroring a
// standard bootstrap-then-user-classpath lookup order.
func buildClassManager() (*classmanager.ClassManager, error) {
	var loader classmanager.Loader = classmanager.NewJmodLoader(cfg.BootstrapJmod)
	for _, root := range cfg.ClasspathRoots {
		loader = classmanager.NewDirLoader(root, loader)
	}

	mgr := classmanager.NewClassManager(loader)
	mgr.SetMaxFrameDepth(cfg.MaxFrameDepth)
	return mgr, nil
}
