package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/milk9111/hsm"
	"github.com/milk9111/hsm/condition"
	"github.com/milk9111/hsm/ecs"
	"github.com/milk9111/hsm/internal/logging"
	"github.com/milk9111/hsm/prefabs"
	"github.com/milk9111/hsm/script"
)

func main() {
	var (
		specPath = flag.String("spec", "switch.yaml", "machine spec to run")
		input    = flag.String("input", "-,up,up,down", "comma separated input per tick: up, down, press, power, reset or -")
		ticks    = flag.Int("ticks", 0, "ticks to run, 0 runs one per input")
		condExpr = flag.String("cond", "", "validate a condition expression and exit")
		level    = flag.String("level", "info", "log level: debug, info, warn, error")
		watch    = flag.Bool("watch", false, "watch prefabs/ and reload scripts on change")
	)
	flag.Parse()

	if *condExpr != "" {
		cond, err := condition.Parse(*condExpr)
		if err != nil {
			log.Fatalf("invalid condition: %v", err)
		}
		fmt.Println(cond.String())
		fmt.Printf("predicates: %s\n", strings.Join(cond.Names(), ", "))
		return
	}

	logger := logging.New(logging.ParseLevel(*level))

	inputs := strings.Split(*input, ",")
	tick := 0
	cur := func() string {
		if tick < len(inputs) {
			return strings.TrimSpace(inputs[tick])
		}
		return ""
	}
	powered := false

	w := ecs.NewWorld()
	rt := hsm.NewRuntime(logger)
	scripts := script.New(logger, prefabs.LoadScript)

	nameOf := func(e ecs.Entity) string {
		if st, ok := ecs.Get(w, e, hsm.StateComponent); ok && st.Name != "" {
			return st.Name
		}
		return e.String()
	}

	rt.Conditions().Insert("is_up", func(_ *ecs.World, _ hsm.Context) (bool, error) {
		return cur() == "up", nil
	})
	rt.Conditions().Insert("is_down", func(_ *ecs.World, _ hsm.Context) (bool, error) {
		return cur() == "down", nil
	})
	rt.EnterHooks().Insert("announce_enter", func(_ *ecs.World, ctx hsm.Context) error {
		fmt.Printf("%s:Enter\n", nameOf(ctx.State))
		return nil
	})
	rt.ExitHooks().Insert("announce_exit", func(_ *ecs.World, ctx hsm.Context) error {
		fmt.Printf("%s:Exit\n", nameOf(ctx.State))
		return nil
	})

	scripts.Register("powered", func([]any) any { return powered })
	scripts.Register("set_light", func(args []any) any {
		on := len(args) > 0 && args[0] == true
		fmt.Printf("light: %v\n", on)
		return nil
	})
	scripts.Register("pressed", func([]any) any { return cur() == "press" })
	scripts.Register("limit", func([]any) any { return 3 })
	scripts.Register("reset_requested", func([]any) any { return cur() == "reset" })
	scripts.Register("notify", func(args []any) any {
		if len(args) > 0 {
			fmt.Printf("notify: %v\n", args[0])
		}
		return nil
	})

	spec, err := prefabs.LoadMachineSpec(*specPath)
	if err != nil {
		log.Fatal(err)
	}
	built, err := prefabs.Build(w, rt, scripts, spec)
	if err != nil {
		log.Fatal(err)
	}
	w.AddSystem(rt)

	if *watch {
		watcher, err := prefabs.NewWatcher("prefabs", "prefabs/scripts")
		if err != nil {
			logger.Warn("watcher unavailable", "err", err)
		} else {
			defer watcher.Close()
			go func() {
				for path := range watcher.Events {
					logger.Info("reloading script", "path", path)
					// Specs key the compile cache by bare file name.
					scripts.Invalidate(filepath.Base(path))
				}
			}()
		}
	}

	n := *ticks
	if n == 0 {
		n = len(inputs)
	}
	for tick = 0; tick < n; tick++ {
		if cur() == "power" {
			powered = !powered
		}
		w.Update()
		for _, evt := range w.Events().Drain() {
			if evt.Type == hsm.EventMachineTerminated && evt.Data == built.Machine {
				logger.Info("machine terminated, restarting", "machine", spec.Name)
				rt.ClearTerminated(w, built.Machine)
			}
		}
	}
}
