// Command simulate runs repeated consensus trials on the in-process bus and
// prints one row per trial.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pterm/pterm"

	"github.com/meta-node-blockchain/benor/pkg/cluster"
	"github.com/meta-node-blockchain/benor/pkg/config"
	"github.com/meta-node-blockchain/benor/pkg/logger"
)

type trialResult struct {
	id       string
	inputs   string
	outcome  cluster.Outcome
	duration time.Duration
	err      error
}

func main() {
	numNodes := flag.Int("n", 4, "Number of nodes")
	numFaulty := flag.Int("f", 1, "Fault tolerance F")
	faultyCount := flag.Int("faulty", 0, "How many nodes (the last ones) run in faulty mode")
	trials := flag.Int("trials", 20, "Number of trials")
	inputs := flag.String("inputs", "random", `Initial values, e.g. "0,0,1,1", or "random"`)
	latency := flag.Duration("latency", 0, "Base delivery latency")
	jitter := flag.Duration("jitter", time.Millisecond, "Random extra delivery latency")
	seed := flag.Int64("seed", 0, "Seed for coins and inputs (0 = clock)")
	timeout := flag.Duration("timeout", 30*time.Second, "Per trial timeout")
	logLevel := flag.String("log-level", "warn", "Log level: trace, debug, info, warn, error, off")
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Error parsing log level: %v", err)
	}
	logger.SetFlag(level)

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rnd := rand.New(rand.NewSource(*seed))
	network := config.NetworkConfig{NumNodes: *numNodes, NumFaulty: *numFaulty}

	pterm.DefaultSection.Printfln("Ben-Or simulation: N=%d F=%d faulty=%d trials=%d seed=%d", *numNodes, *numFaulty, *faultyCount, *trials, *seed)

	var results []trialResult
	for i := 0; i < *trials; i++ {
		values, err := cluster.ParseInputs(*inputs, *numNodes, rnd)
		if err != nil {
			log.Fatalf("Error parsing inputs: %v", err)
		}
		res := trialResult{id: uuid.New().String()[:8], inputs: fmt.Sprint(values)}
		start := time.Now()
		res.outcome, res.err = runTrial(cluster.Options{
			Network:       network,
			InitialValues: values,
			Faulty:        cluster.LastFaulty(*faultyCount, *numNodes),
			Latency:       *latency,
			Jitter:        *jitter,
			Seed:          rnd.Int63(),
		}, *timeout)
		res.duration = time.Since(start)
		results = append(results, res)
	}

	if !report(results) {
		os.Exit(1)
	}
}

func runTrial(opts cluster.Options, timeout time.Duration) (cluster.Outcome, error) {
	c, err := cluster.New(opts)
	if err != nil {
		return cluster.Outcome{}, err
	}
	defer c.Close()
	if err := c.Launch(); err != nil {
		return cluster.Outcome{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := c.StartAll(ctx); err != nil {
		return cluster.Outcome{}, err
	}
	states, err := c.WaitForDecision(ctx)
	return cluster.Summarize(states), err
}

// report prints the table and returns false if any trial failed.
func report(results []trialResult) bool {
	data := pterm.TableData{{"Trial", "Inputs", "Decided", "Value", "Max round", "Time", "Result"}}
	ok := true
	rounds := 0
	for _, r := range results {
		status := pterm.LightGreen("ok")
		switch {
		case r.err != nil:
			status = pterm.LightRed(r.err.Error())
			ok = false
		case !r.outcome.Agreed:
			status = pterm.LightRed("DISAGREEMENT")
			ok = false
		case !r.outcome.Terminated():
			status = pterm.LightYellow("incomplete")
			ok = false
		}
		rounds += r.outcome.MaxRound
		data = append(data, []string{
			r.id,
			r.inputs,
			fmt.Sprintf("%d/%d", r.outcome.Decided, r.outcome.Live),
			r.outcome.Value.String(),
			strconv.Itoa(r.outcome.MaxRound),
			r.duration.Round(time.Millisecond).String(),
			status,
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		log.Printf("Error rendering table: %v", err)
	}
	if len(results) > 0 {
		pterm.Info.Printfln("Average decision round: %.2f", float64(rounds)/float64(len(results)))
	}
	if ok {
		pterm.Success.Printfln("All %d trials terminated with agreement", len(results))
	} else {
		pterm.Error.Printfln("Some trials failed")
	}
	return ok
}
