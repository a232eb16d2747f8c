package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pteich/configstruct"
	"github.com/sirupsen/logrus"

	"github.com/pteich/elastic-frame/export"
	"github.com/pteich/elastic-frame/flags"
)

var Version string

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conf := flags.Flags{}
	if err := configstruct.Parse(&conf); err != nil {
		fmt.Fprintf(os.Stderr, "elastic-frame %s: %v\n", Version, err)
		os.Exit(2)
	}

	if conf.Config != "" {
		profile, err := flags.LoadProfile(conf.Config)
		if err != nil {
			logrus.Fatalf("loading profile: %v", err)
		}
		profile.Apply(&conf)
	}

	flags.SetDefaults(&conf)
	if err := flags.Validate(&conf); err != nil {
		logrus.Fatal(err)
	}

	if err := export.Run(ctx, &conf); err != nil {
		logrus.WithField("mode", conf.Mode).Fatal(err)
	}
}
