package main

import (
	"github.com/Paintersrp/procvisor/internal/cli"
	"github.com/Paintersrp/procvisor/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
