package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/tsawler/trajgan/engine"
	"github.com/tsawler/trajgan/gan"
	"github.com/tsawler/trajgan/layers"
	"github.com/tsawler/trajgan/optimizer"
)

func main() {
	defaults := gan.DefaultConfig()

	noise := flag.Int("noise", defaults.NoiseSize, "noise vector size")
	hidden := flag.Int("hidden", defaults.HiddenSize, "hidden layer width")
	trajLen := flag.Int("traj-len", defaults.MaxTrajLen, "generated trajectory length")
	arrayLen := flag.Int("array-len", defaults.ArrayLength, "discriminator input length")
	seed := flag.Int64("seed", defaults.Model.Seed, "weight initialization seed")
	score := flag.String("score-activation", defaults.ScoreActivation.String(), "discriminator score activation (leakyrelu, identity, tanh, sigmoid)")
	updater := flag.String("updater", defaults.Model.Updater.Type().String(), "update rule (adam, sgd, rmsprop)")
	weightInit := flag.String("weight-init", defaults.Model.WeightInit.String(), "weight initializer (xavier, xavier_uniform, he, zero)")
	summary := flag.Bool("summary", true, "print model summaries")
	describe := flag.Bool("describe", false, "print both topologies as JSON")
	flag.Parse()

	cfg := defaults
	cfg.NoiseSize = *noise
	cfg.HiddenSize = *hidden
	cfg.MaxTrajLen = *trajLen
	cfg.ArrayLength = *arrayLen
	cfg.Model.Seed = *seed

	act, err := layers.ParseActivation(*score)
	if err != nil {
		log.Fatalf("Invalid -score-activation: %v", err)
	}
	cfg.ScoreActivation = act

	ut, err := optimizer.ParseUpdaterType(*updater)
	if err != nil {
		log.Fatalf("Invalid -updater: %v", err)
	}
	if cfg.Model.Updater, err = optimizer.NewUpdater(ut); err != nil {
		log.Fatalf("Failed to create updater: %v", err)
	}

	if cfg.Model.WeightInit, err = engine.ParseWeightInit(*weightInit); err != nil {
		log.Fatalf("Invalid -weight-init: %v", err)
	}

	pair, err := gan.Assemble(cfg)
	if err != nil {
		log.Fatalf("Failed to assemble models: %v", err)
	}

	fmt.Printf("Generator:     %d parameters, output %s\n",
		pair.Generator.NumParams(), layers.FormatShape(pair.Generator.Spec().OutputShape()))
	fmt.Printf("Discriminator: %d parameters, input %s\n",
		pair.Discriminator.NumParams(), layers.FormatShape(pair.Discriminator.Spec().InputShape()))
	fmt.Printf("Score loss:    %s\n", gan.ScoreLoss(cfg.ScoreActivation))

	if *summary {
		fmt.Println()
		fmt.Print(pair.Summary())
	}

	if *describe {
		for _, m := range []*engine.Model{pair.Generator, pair.Discriminator} {
			out, err := m.Spec().DescribeJSON()
			if err != nil {
				log.Fatalf("Failed to describe %s: %v", m.Spec().Name(), err)
			}
			fmt.Println(out)
		}
	}

	if err := pair.Train(nil); err != nil {
		if errors.Is(err, gan.ErrNoTrainer) {
			log.Printf("Models initialized; %v", err)
			return
		}
		log.Fatalf("Training failed: %v", err)
	}
}
