// jitrt compiles and executes tensor programs from the command line.
//
// Usage:
//
//	jitrt signature program.mlir --entry compute
//	jitrt run program.mlir --entry compute --arg f32:2x2:1,2,3,4 --arg i32:2:1,0
//	jitrt bench program.mlir --entry compute --arg f32:2x2:1,2,3,4 --arg i32:2:1,0 --runs 1000
//
// See --help for all the flags.
package main

import (
	"os"

	_ "github.com/gomlx/jitrt/backends/default"
	"github.com/gomlx/jitrt/internal/cli"
	"k8s.io/klog/v2"
)

func main() {
	defer klog.Flush()
	if err := cli.NewRootCommand().Execute(); err != nil {
		klog.Errorf("%+v", err)
		os.Exit(1)
	}
}
