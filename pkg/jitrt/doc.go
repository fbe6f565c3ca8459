// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package jitrt compiles and executes tensor programs written in IR (see package ir), specializing
// the compiled code to the arguments it is called with when needed.
//
// A JitExecutable is created from the program source and the name of its entry function:
//
//	opts := jitrt.DefaultCompilationOptions()
//	opts.RegisterDialects = func(r *ir.DialectRegistry) {
//		compiler.RegisterDefaultDialects(r)
//		r.Insert("tosa")
//	}
//	jit, err := jitrt.Instantiate(source, "compute", opts)
//	if err != nil { ... }
//	defer jit.Finalize()
//
// It immediately compiles the Default executable, without specialization. Arguments annotated with
// a constraint attribute (`{jitrt.constraint = "rank" | "shape" | "value"}`) can be specialized:
// GetExecutable fingerprints the constrained arguments and compiles (once) an executable for
// their concrete shapes or values. A "value" constrained argument is embedded in the program as a
// constant. If a program can't be lowered without specialization, the Default executable ends up
// in error, and GetExecutable must be used:
//
//	args := []jitrt.MemrefDesc{jitrt.MemrefFromTensor(input), jitrt.MemrefFromTensor(perm)}
//	exe, err := jit.GetExecutable(args)
//	if err != nil { ... }
//	executable, err := exe.Await()
//	if err != nil { ... }
//
//	results := jitrt.NewResults(executable.NumResults())
//	converter := jitrt.NewReturnValueConverter(results, struct{}{}).
//		AddConversion(jitrt.MatchMemref, jitrt.ReturnMemrefAsTensor[struct{}])
//	err = executable.Execute(args, converter, jitrt.ExecuteOpts{})
//	output, err := results.Await(0)
//
// Compilations run on the TaskRunner given in CompilationOptions (by default inline, in the calling
// goroutine). Failures never panic across the API: they are returned as typed errors, or set as the
// terminal error state of the asynchronous handles.
package jitrt
