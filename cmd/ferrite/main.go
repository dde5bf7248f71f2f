// Ferrite CLI - assemble, run, inspect, and store ferrite programs.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"

	"github.com/ferrite-vm/ferrite/manifest"
	"github.com/ferrite-vm/ferrite/pkg/asm"
	"github.com/ferrite-vm/ferrite/pkg/snapshot"
	"github.com/ferrite-vm/ferrite/pkg/store"
	"github.com/ferrite-vm/ferrite/pkg/trace"
	"github.com/ferrite-vm/ferrite/pkg/vm"

	_ "github.com/tliron/commonlog/simple"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: ferrite <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  run [file]      assemble and run a program (or a built-in example)\n")
	fmt.Fprintf(os.Stderr, "  asm <file>      assemble a source file into a binary program\n")
	fmt.Fprintf(os.Stderr, "  disasm <file>   disassemble a binary program\n")
	fmt.Fprintf(os.Stderr, "  store <op>      manage the program library (put, get, list, delete)\n")
	fmt.Fprintf(os.Stderr, "  examples        list the built-in example programs\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  ferrite run loop.fasm -trace\n")
	fmt.Fprintf(os.Stderr, "  ferrite run -example subroutine -profile\n")
	fmt.Fprintf(os.Stderr, "  ferrite asm loop.fasm -o loop.fep\n")
	fmt.Fprintf(os.Stderr, "  ferrite store put loop.fasm\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = cmdRun(os.Args[2:])
	case "asm":
		err = cmdAsm(os.Args[2:])
	case "disasm":
		err = cmdDisasm(os.Args[2:])
	case "store":
		err = cmdStore(os.Args[2:])
	case "examples":
		err = cmdExamples()
	case "-h", "-help", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// projectManifest finds the enclosing ferrite.toml, if any.
func projectManifest() *manifest.Manifest {
	cwd, err := os.Getwd()
	if err != nil {
		return nil
	}
	m, err := manifest.FindAndLoad(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return nil
	}
	return m
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	example := fs.String("example", "", "Run a built-in example program")
	traceFlag := fs.Bool("trace", false, "Log every instruction")
	profileFlag := fs.Bool("profile", false, "Print an execution profile after the run")
	memSize := fs.Int("mem", 0, "Memory size in bytes (0 uses the manifest or the default)")
	verbosity := fs.Int("v", 0, "Log verbosity")
	snapPath := fs.String("snapshot", "", "Save a machine snapshot to this path after the run")
	fs.Parse(args)

	commonlog.Configure(*verbosity, nil)

	m := projectManifest()

	prog, name, err := resolveProgram(fs.Args(), *example, m)
	if err != nil {
		return err
	}

	mem := *memSize
	var hotThreshold uint64
	if m != nil {
		if mem == 0 {
			mem = m.Machine.MemorySize
		}
		hotThreshold = uint64(m.Machine.HotThreshold)
	}

	var observers trace.Multi
	if *traceFlag || (m != nil && m.Trace.Enabled) {
		observers = append(observers, trace.NewTracer("ferrite.trace"))
	}
	var profiler *trace.Profiler
	if *profileFlag || (m != nil && m.Trace.Profile) {
		profiler = trace.NewProfiler()
		observers = append(observers, profiler)
	}

	cfg := vm.Config{MemorySize: mem, HotThreshold: hotThreshold}
	if len(observers) > 0 {
		cfg.Observer = observers
	}
	eng, err := vm.NewEngine(cfg)
	if err != nil {
		return err
	}
	if err := eng.LoadProgram(prog); err != nil {
		return err
	}

	runErr := eng.Run()
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", name, eng.DebugSnapshot())
	} else {
		fmt.Println(eng.DebugSnapshot())
	}

	if profiler != nil {
		fmt.Print(profiler.Report())
		stats := eng.HotPathStats()
		if stats.CachedAddresses > 0 {
			fmt.Printf("hot paths: %d cached, %.1f%% hit rate\n", stats.CachedAddresses, stats.HitRate)
		}
	}

	if *snapPath != "" {
		if err := snapshot.SaveFile(*snapPath, snapshot.Capture(eng, prog)); err != nil {
			return err
		}
		fmt.Printf("Snapshot saved to %s\n", *snapPath)
	}
	return runErr
}

// resolveProgram picks the program to run: an explicit file argument, a
// built-in example, or the manifest's entry source.
func resolveProgram(args []string, example string, m *manifest.Manifest) (vm.Program, string, error) {
	if example != "" {
		prog, ok := examplePrograms[example]
		if !ok {
			return nil, "", fmt.Errorf("unknown example %q (try 'ferrite examples')", example)
		}
		return prog, example, nil
	}
	path := ""
	if len(args) > 0 {
		path = args[0]
	} else if m != nil {
		path = m.EntryPath()
	}
	if path == "" {
		return nil, "", fmt.Errorf("nothing to run: pass a source file, -example, or configure project.entry")
	}
	prog, err := loadProgramFile(path)
	if err != nil {
		return nil, "", err
	}
	return prog, filepath.Base(path), nil
}

// loadProgramFile reads either assembly source or a serialized binary
// program, picked by file extension.
func loadProgramFile(path string) (vm.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(path) == ".fep" {
		return vm.DeserializeProgram(data)
	}
	return asm.Assemble(string(data))
}

func cmdAsm(args []string) error {
	fs := flag.NewFlagSet("asm", flag.ExitOnError)
	out := fs.String("o", "", "Output path (default: source path with .fep extension)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("asm takes exactly one source file")
	}
	path := fs.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	prog, err := asm.Assemble(string(data))
	if err != nil {
		return err
	}

	outPath := *out
	if outPath == "" {
		outPath = path[:len(path)-len(filepath.Ext(path))] + ".fep"
	}
	if err := os.WriteFile(outPath, prog.Serialize(), 0644); err != nil {
		return err
	}
	fmt.Printf("Assembled %d instructions to %s\n", len(prog), outPath)
	return nil
}

func cmdDisasm(args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("disasm takes exactly one program file")
	}
	path := fs.Arg(0)

	prog, err := loadProgramFile(path)
	if err != nil {
		return err
	}
	fmt.Print(prog.DisassembleWithName(filepath.Base(path)))
	return nil
}

func cmdStore(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("store takes an operation: put, get, list, delete")
	}
	op := args[0]

	fs := flag.NewFlagSet("store "+op, flag.ExitOnError)
	dbPath := fs.String("db", "", "Program library path (default: from ferrite.toml)")
	name := fs.String("name", "", "Program name (put: defaults to the file name)")
	fs.Parse(args[1:])

	path := *dbPath
	if path == "" {
		if m := projectManifest(); m != nil {
			path = m.StorePath()
		} else {
			path = filepath.Join(".ferrite", "programs.db")
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	s, err := store.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()

	switch op {
	case "put":
		if fs.NArg() != 1 {
			return fmt.Errorf("store put takes one source file")
		}
		prog, err := loadProgramFile(fs.Arg(0))
		if err != nil {
			return err
		}
		label := *name
		if label == "" {
			label = filepath.Base(fs.Arg(0))
		}
		hash, err := s.Put(label, prog)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s\n", hash, label)
		return nil

	case "get":
		if fs.NArg() != 1 {
			return fmt.Errorf("store get takes a hash or -name")
		}
		var prog vm.Program
		if *name != "" {
			prog, err = s.GetByName(*name)
		} else {
			prog, err = s.Get(fs.Arg(0))
		}
		if err != nil {
			return err
		}
		fmt.Print(prog.Disassemble())
		return nil

	case "list":
		entries, err := s.List()
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %-20s %5d instructions  %s\n",
				e.Hash[:12], e.Name, e.Instructions, e.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil

	case "delete":
		if fs.NArg() != 1 {
			return fmt.Errorf("store delete takes a hash")
		}
		return s.Delete(fs.Arg(0))

	default:
		return fmt.Errorf("unknown store operation %q", op)
	}
}

func cmdExamples() error {
	for _, name := range exampleNames {
		fmt.Printf("  %-12s %s\n", name, exampleDescriptions[name])
	}
	return nil
}
