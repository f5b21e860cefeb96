package main

import (
	"github.com/MeKo-Tech/lbpfeat/cmd/lbpfeat/cmd"
)

func main() {
	cmd.Execute()
}
