// Copyright (c) 2025 BVK Chaitanya

package main

import (
	"context"
	"log"
	"os"

	"github.com/bvk/copybot/cli"
	"github.com/bvk/copybot/envfile"
	"github.com/bvk/copybot/subcmds"
	"github.com/bvk/copybot/subcmds/db"
	"github.com/bvk/copybot/subcmds/executions"
	"github.com/bvk/copybot/subcmds/job"
	"github.com/bvk/copybot/subcmds/strategy"
	"github.com/bvk/copybot/subcmds/target"
)

func main() {
	// Pick up COPYBOT_* variables from an env file, if one exists.
	envOpts := []envfile.Option{
		envfile.SearchCurrentDir(true),
		envfile.VariableNamePrefix("COPYBOT_"),
	}
	if err := envfile.UpdateEnv("copybot.env", envOpts...); err != nil {
		log.Fatal(err)
	}

	dbCmds := []cli.Command{
		new(db.Get),
		new(db.Set),
		new(db.Delete),
		new(db.List),
		new(db.Backup),
		new(db.Restore),
	}

	jobCmds := []cli.Command{
		new(job.List),
		new(job.Pause),
		new(job.Resume),
		new(job.Cancel),
	}

	targetCmds := []cli.Command{
		new(target.Add),
		new(target.Remove),
		new(target.List),
	}

	strategyCmds := []cli.Command{
		new(strategy.Get),
		new(strategy.Set),
	}

	executionsCmds := []cli.Command{
		new(executions.List),
		new(executions.Ledger),
	}

	cmds := []cli.Command{
		new(subcmds.Run),
		new(subcmds.Status),
		new(subcmds.Setup),
		new(subcmds.IDGen),
		cli.CommandGroup("target", "Manage copy targets", targetCmds...),
		cli.CommandGroup("strategy", "View/update the copy strategy", strategyCmds...),
		cli.CommandGroup("job", "Control copier jobs", jobCmds...),
		cli.CommandGroup("executions", "View execution records", executionsCmds...),
		cli.CommandGroup("db", "View/update database directly", dbCmds...),
	}
	if err := cli.Run(context.Background(), cmds, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
