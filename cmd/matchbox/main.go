package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli"

	"github.com/matchboxhq/matchbox/api"
	"github.com/matchboxhq/matchbox/config"
	"github.com/matchboxhq/matchbox/embedding"
	"github.com/matchboxhq/matchbox/inference"
	"github.com/matchboxhq/matchbox/log"
	"github.com/matchboxhq/matchbox/pipeline"
	"github.com/matchboxhq/matchbox/queue"
	"github.com/matchboxhq/matchbox/seed"
	"github.com/matchboxhq/matchbox/vectorstore"
)

var (
	app        *cli.App
	configPath string
)

func init() {
	// Initialise a CLI app
	app = cli.NewApp()
	app.Name = "matchbox"
	app.Usage = "asynchronous document processing: resume parsing, embeddings and matching search"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "c",
			Value:       "",
			Destination: &configPath,
			Usage:       "Path to a configuration file",
		},
	}
}

func main() {
	// A local .env file is optional
	godotenv.Load()

	app.Commands = []cli.Command{
		{
			Name:  "api",
			Usage: "launch the HTTP API",
			Action: func(c *cli.Context) error {
				if err := serveAPI(); err != nil {
					return cli.NewExitError(err.Error(), 1)
				}
				return nil
			},
		},
		{
			Name:  "worker",
			Usage: "launch a task worker",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "tag, t",
					Value: "matchbox_worker",
					Usage: "consumer tag reported to the broker",
				},
				cli.IntFlag{
					Name:  "concurrency",
					Value: 10,
					Usage: "number of concurrent task slots",
				},
			},
			Action: func(c *cli.Context) error {
				if err := runWorker(c.String("tag"), c.Int("concurrency")); err != nil {
					return cli.NewExitError(err.Error(), 1)
				}
				return nil
			},
		},
		{
			Name:  "seed",
			Usage: "load the bundled job corpus through a running API",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "api-url",
					Value: "http://localhost:8000",
					Usage: "base URL of the running API",
				},
			},
			Action: func(c *cli.Context) error {
				if err := seed.NewRunner(c.String("api-url"), 0).Run(context.Background()); err != nil {
					return cli.NewExitError(err.Error(), 1)
				}
				return nil
			},
		},
	}

	// Run the CLI app
	if err := app.Run(os.Args); err != nil {
		log.FATAL.Fatal(err)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.NewFromYaml(configPath, true)
	}
	return config.NewFromEnvironment()
}

// clients bundles the external collaborators both processes wire up.
type clients struct {
	encoder  *embedding.HuggingFace
	store    *vectorstore.Client
	pipeline *pipeline.Pipeline
}

func buildClients(cnf *config.Config) *clients {
	encoder := embedding.NewHuggingFace(
		cnf.Embedding.URL,
		cnf.Embedding.Token,
		time.Duration(cnf.Embedding.TimeoutSeconds)*time.Second,
	)
	store := vectorstore.NewClient(cnf.Qdrant.Host, cnf.Qdrant.Port, 0)
	generator := inference.NewClient(
		cnf.Inference.URL,
		cnf.Inference.Token,
		time.Duration(cnf.Inference.TimeoutSeconds)*time.Second,
	)

	return &clients{
		encoder: encoder,
		store:   store,
		pipeline: pipeline.New(pipeline.Deps{
			Generator: generator,
			Encoder:   encoder,
			Store:     store,
		}),
	}
}

// startServer builds the queue server with every task handler registered.
// Both the API and the worker register handlers, so an eager broker works
// in either process.
func startServer() (*queue.Server, *clients, error) {
	cnf, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	server, err := queue.NewServer(cnf)
	if err != nil {
		return nil, nil, err
	}

	cl := buildClients(cnf)
	if err := cl.pipeline.Register(server); err != nil {
		return nil, nil, err
	}

	return server, cl, nil
}

func serveAPI() error {
	server, cl, err := startServer()
	if err != nil {
		return err
	}

	apiServer := api.New(server.GetConfig(), server, cl.encoder, cl.store)

	// Collection bootstrap is best effort, the API still serves when the
	// vector store is not reachable yet
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := apiServer.Bootstrap(ctx); err != nil {
		log.WARNING.Printf("Vector collection bootstrap failed: %s", err)
	}

	return apiServer.Listen()
}

func runWorker(tag string, concurrency int) error {
	server, _, err := startServer()
	if err != nil {
		return err
	}

	log.INFO.Printf("Starting worker %s with concurrency %d", tag, concurrency)
	return server.NewWorker(tag, concurrency).Launch()
}
