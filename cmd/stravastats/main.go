package main

import (
	"errors"
	"fmt"
	"os"

	// Autoloads .env file to supply environment variables
	_ "github.com/joho/godotenv/autoload"

	"github.com/jessevdk/go-flags"
)

// Options is the root command. The struct tags are read by go-flags.
type Options struct {
	Serve  *ServeCmd  `command:"serve" description:"Start the HTTP server"`
	Import *ImportCmd `command:"import" description:"Backfill the authorized athlete's runs"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts := &Options{Serve: &ServeCmd{}, Import: &ImportCmd{}}
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	if len(args) == 0 {
		args = []string{"serve"}
	}
	_, err := parser.ParseArgs(args)
	var ferr *flags.Error
	if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
		parser.WriteHelp(os.Stdout)
		return nil
	}
	return err
}
