// Package cli implements catalogue-cli, a command-line client of the catalogue
// API built on the typed catalogue client.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jsamuelsen11/selmag/internal/client"
	"github.com/jsamuelsen11/selmag/internal/client/catalogue"
	"github.com/jsamuelsen11/selmag/internal/config"
	"github.com/jsamuelsen11/selmag/internal/models"
	"github.com/jsamuelsen11/selmag/internal/redis"
	"github.com/jsamuelsen11/selmag/internal/startup"
	"github.com/jsamuelsen11/selmag/pkg/logger"
)

// tokenRegistrationID names the registration of clients that send a supplied token.
const tokenRegistrationID = "cli"

// options are the resolved persistent flags.
type options struct {
	host         string
	token        string
	registration string
	output       string
	timeout      time.Duration
	verbose      bool
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd(os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			_ = printJSON(os.Stdout, errorObject(err))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "catalogue-cli",
		Short:         "Selmag catalogue CLI",
		Long:          "Command-line interface for the Selmag catalogue API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("token") {
				if v := os.Getenv("CATALOGUE_CLI_TOKEN"); v != "" {
					opts.token = v
				}
			}
			if opts.output != "table" && opts.output != "json" {
				return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", opts.output)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.host, "host", "", "Catalogue API base URI (default: the registration's)")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", "", "Bearer token to send as is")
	rootCmd.PersistentFlags().StringVar(&opts.registration, "registration", "",
		"client_credentials registration to obtain tokens with (default: CATALOGUE_REGISTRATION_ID)")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log requests to stderr")

	clientFor := func() (catalogue.ProductsClient, error) {
		return newProductsClient(opts)
	}

	rootCmd.AddCommand(
		newListCmd(out, opts, clientFor),
		newGetCmd(out, opts, clientFor),
		newCreateCmd(out, opts, clientFor),
		newUpdateCmd(out, clientFor),
		newDeleteCmd(out, clientFor),
	)
	rootCmd.SetOut(out)

	return rootCmd
}

// newProductsClient builds a catalogue client that either sends the supplied
// token or obtains one with a client_credentials registration.
func newProductsClient(opts *options) (catalogue.ProductsClient, error) {
	level := "error"
	if opts.verbose {
		level = "debug"
	}
	log := logger.New(level, "text", "stderr")
	store := redis.NewMemoryStore(log)

	if opts.token != "" {
		if opts.host == "" {
			return nil, errors.New("--host is required with --token")
		}
		registration := models.ClientRegistration{
			RegistrationID: tokenRegistrationID,
			BaseURI:        opts.host,
			Timeout:        opts.timeout,
		}
		registry, err := client.NewRegistry(registration)
		if err != nil {
			return nil, err
		}
		provider := client.NewCredentialProvider(registry, store, log)
		return catalogue.NewFactory(registration, provider, nil, nil, log).WithToken(opts.token), nil
	}

	registration, registry, err := loadRegistration(opts, log)
	if err != nil {
		return nil, err
	}
	provider := client.NewCredentialProvider(registry, store, log)
	return catalogue.NewFactory(registration, provider, nil, nil, log).For(models.Principal{}), nil
}

func loadRegistration(opts *options, log *logrus.Logger) (models.ClientRegistration, *client.Registry, error) {
	cfg, err := config.Load()
	if err != nil {
		return models.ClientRegistration{}, nil, err
	}

	loaded, err := startup.LoadClientRegistrations(cfg, log)
	if err != nil {
		return models.ClientRegistration{}, nil, err
	}

	registration := loaded.Catalogue
	if opts.registration != "" {
		var ok bool
		if registration, ok = loaded.Registry.Get(opts.registration); !ok {
			return models.ClientRegistration{}, nil, fmt.Errorf("unknown registration %q", opts.registration)
		}
	}
	if registration.GrantType != models.GrantTypeClientCredentials {
		return models.ClientRegistration{}, nil, fmt.Errorf(
			"registration %q uses %s; pass --token or pick a client_credentials registration",
			registration.RegistrationID, registration.GrantType,
		)
	}
	if opts.host != "" {
		registration.BaseURI = opts.host
	}

	return registration, loaded.Registry, nil
}

func errorObject(err error) map[string]any {
	obj := map[string]any{"error": err.Error()}

	var badRequest *models.BadRequestError
	var transportErr *models.TransportError
	switch kind := models.Classify(err); {
	case errors.As(err, &badRequest):
		obj["kind"] = kind.String()
		obj["errors"] = badRequest.Errors
	case errors.As(err, &transportErr):
		obj["kind"] = kind.String()
		if transportErr.StatusCode != 0 {
			obj["http_status"] = transportErr.StatusCode
		}
	case kind != models.KindTransport:
		obj["kind"] = kind.String()
	}
	return obj
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
