// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bvk/copybot/cli"
	"github.com/bvk/copybot/ctxutil"
	"github.com/bvk/copybot/polymarket"
	"github.com/bvk/copybot/pushover"
	"github.com/bvk/copybot/server"
	"github.com/bvk/copybot/subcmds/defaults"
	"github.com/bvk/copybot/telegram"
	"github.com/bvkgo/kv/kvmemdb"
	"golang.org/x/term"
)

type Setup struct {
	dataDir     string
	secretsPath string
	skipTesting bool
}

func (c *Setup) Synopsis() string {
	return "Setup prints and/or configures copybot daemon"
}

func (c *Setup) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("setup", flag.ContinueOnError)
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	fset.StringVar(&c.secretsPath, "secrets-file", "", "path to credentials file")
	fset.BoolVar(&c.skipTesting, "skip-testing", false, "don't test the parameters")
	return fset, cli.CmdFunc(c.run)
}

func (c *Setup) CommandHelp() string {
	return `

Command "setup" helps users configure Polymarket CLOB API keys, the order
signer address and notification keys for the Pushover and Telegram services.
Command prints current config when run without any arguments.

POLYMARKET PARAMETERS

Polymarket CLOB API keys are required to put buy/sell orders on the exchange.
Order signing is performed by a separate signing service, whose address must
also be configured. They can be configured as follows:

  $ copybot setup polymarket-address=0x1111... polymarket-key=2222... polymarket-secret=3333... polymarket-passphrase=4444... signer-url=http://127.0.0.1:10001

Without these parameters only dry-run strategies can be used.

PUSHOVER PARAMETERS

Pushover keys are optional. They are required to receive notifications to the
mobile phones. They can be configured as follows:

  $ copybot setup pushover-app=awja5ue...ito7svf pushover-user=uscjs2...tvp4kv

TELEGRAM PARAMETERS

Telegram parameters are optional. They enable notifications and bot commands
through a Telegram bot. They can be configured as follows:

  $ copybot setup telegram-owner=username telegram-token=110201543:AAH...dew11o
`
}

func (c *Setup) run(ctx context.Context, args []string) error {
	if len(c.dataDir) == 0 {
		c.dataDir = defaults.DataDir()
	}
	if _, err := os.Stat(c.dataDir); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("could not stat data directory %q: %w", c.dataDir, err)
		}
		if len(args) == 0 {
			return fmt.Errorf("copybot is not configured")
		}
		if err := os.MkdirAll(c.dataDir, 0700); err != nil {
			return fmt.Errorf("could not create data directory %q: %w", c.dataDir, err)
		}
	}
	dataDir, err := filepath.Abs(c.dataDir)
	if err != nil {
		return fmt.Errorf("could not determine data-dir %q absolute path: %w", c.dataDir, err)
	}

	if len(c.secretsPath) == 0 {
		c.secretsPath = filepath.Join(dataDir, "secrets.json")
	}
	secrets, err := server.SecretsFromFile(c.secretsPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if len(args) == 0 {
			return fmt.Errorf("copybot is not configured")
		}
	}

	if len(args) == 0 {
		js, _ := json.MarshalIndent(secrets, "", "  ")
		fmt.Printf("%s\n", js)
		return nil
	}

	if secrets == nil {
		secrets = &server.Secrets{}
	}

	validKeys := []string{
		"polymarket-address", "polymarket-key", "polymarket-secret", "polymarket-passphrase",
		"signer-url", "pushover-app", "pushover-user",
		"telegram-owner", "telegram-admin", "telegram-token",
	}
	kvMap := make(map[string]string)
	// Parse config values from the command-line.
	for _, arg := range args {
		before, after, found := strings.Cut(arg, "=")
		if !found {
			return fmt.Errorf("invalid config argument %q", arg)
		}
		if !slices.Contains(validKeys, before) {
			return fmt.Errorf("invalid/unrecognized config item key %q", before)
		}
		if v, ok := kvMap[before]; ok && v != after {
			return fmt.Errorf("config item key %q is found with different values", before)
		}
		kvMap[before] = after
	}

	address := kvMap["polymarket-address"]
	apiKey := kvMap["polymarket-key"]
	apiSecret := kvMap["polymarket-secret"]
	passphrase := kvMap["polymarket-passphrase"]
	signerURL := kvMap["signer-url"]
	if len(address) != 0 || len(apiKey) != 0 || len(apiSecret) != 0 || len(passphrase) != 0 || len(signerURL) != 0 {
		if len(address) == 0 || len(apiKey) == 0 || len(apiSecret) == 0 || len(passphrase) == 0 || len(signerURL) == 0 {
			return fmt.Errorf(`"polymarket-address", "polymarket-key", "polymarket-secret", "polymarket-passphrase" and "signer-url" parameters are all required`)
		}
		secrets.Polymarket = &polymarket.Credentials{
			Address:    address,
			ApiKey:     apiKey,
			Secret:     apiSecret,
			Passphrase: passphrase,
		}
		secrets.SignerURL = signerURL
		if !c.skipTesting {
			// Attempt to authenticate with the exchange to validate the keys.
			u, err := url.Parse(signerURL)
			if err != nil {
				return fmt.Errorf("could not parse signer url: %w", err)
			}
			signer, err := polymarket.NewHTTPSigner(u)
			if err != nil {
				return err
			}
			clob, err := polymarket.NewClob(secrets.Polymarket, signer, nil)
			if err != nil {
				return err
			}
			if _, err := clob.GetBalance(ctx); err != nil {
				return fmt.Errorf("could not fetch balance with the given keys: %w", err)
			}
		}
	}

	pushoverApp := kvMap["pushover-app"]
	pushoverUser := kvMap["pushover-user"]
	if len(pushoverUser) != 0 || len(pushoverApp) != 0 {
		if len(pushoverApp) == 0 || len(pushoverUser) == 0 {
			return fmt.Errorf(`both "pushover-app" and "pushover-user" parameters are required`)
		}
		secrets.Pushover = &pushover.Keys{
			ApplicationKey: pushoverApp,
			UserKey:        pushoverUser,
		}
		if !c.skipTesting {
			// Attempt to authenticate with pushover to validate the keys.
			client, err := pushover.New(secrets.Pushover)
			if err != nil {
				return err
			}
			if err := client.SendMessage(ctx, time.Now(), "Test message from Pushover config setup; please ignore."); err != nil {
				return err
			}
		}
	}

	telegramOwner := kvMap["telegram-owner"]
	telegramToken := kvMap["telegram-token"]
	if len(telegramOwner) != 0 || len(telegramToken) != 0 {
		if len(telegramOwner) == 0 || len(telegramToken) == 0 {
			return fmt.Errorf(`both "telegram-owner" and "telegram-token" parameters are required`)
		}
		secrets.Telegram = &telegram.Secrets{
			OwnerID:  telegramOwner,
			AdminID:  kvMap["telegram-admin"],
			BotToken: telegramToken,
		}
		if err := secrets.Telegram.Check(); err != nil {
			return err
		}
		if !c.skipTesting {
			func() {
				fmt.Println("Start a chat with telegram bot and then press any key")
				// switch stdin into 'raw' mode
				oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
				if err != nil {
					log.Fatal(err)
				}
				defer term.Restore(int(os.Stdin.Fd()), oldState)

				b := make([]byte, 1)
				_, err = os.Stdin.Read(b)
				if err != nil {
					log.Fatal(err)
				}
			}()

			// Attempt to authenticate with telegram to validate the keys.
			client, err := telegram.New(ctx, kvmemdb.New(), secrets.Telegram)
			if err != nil {
				return err
			}
			ctxutil.Sleep(ctx, time.Second)
			if err := client.SendMessage(ctx, time.Now(), "Test message from Telegram config setup; please ignore."); err != nil {
				return err
			}
		}
	}

	js, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.secretsPath, js, os.FileMode(0600)); err != nil {
		return err
	}
	return nil
}
