package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"stocksim/cmd/quotes"
	"stocksim/src/database"
	"stocksim/src/model"
	"stocksim/src/portfolio"
	"stocksim/src/pricing"
	"stocksim/src/server"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "stocksim"
	app.Usage = "The stock simulation command line interface"
	app.Version = Version

	app.Commands = []cli.Command{
		serveCMD,
		quoteCMD,
		refreshQuotesCMD,
		createUserCMD,
		depositCMD,
		historyCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var userFlag = cli.UintFlag{Name: "user", Usage: "user id"}

var (
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the HTTP API",
		Action:      serveAction,
		Flags:       []cli.Flag{},
		Description: `Run the portfolio HTTP API`,
	}
	quoteCMD = cli.Command{
		Name:      "quote",
		Usage:     "print the current price of a symbol",
		Action:    quoteAction,
		ArgsUsage: "SYMBOL",
		Description: `Ask the price oracle for a symbol. Falls back to the static
table when the feed is unavailable`,
	}
	refreshQuotesCMD = cli.Command{
		Name:        "refresh_quotes",
		Usage:       "refresh stored price quotes",
		Action:      refreshQuotesAction,
		Flags:       []cli.Flag{},
		Description: `Fetch the price of every held symbol and upsert price_quotes`,
	}
	createUserCMD = cli.Command{
		Name:   "create_user",
		Usage:  "create an account",
		Action: createUserAction,
		Flags: []cli.Flag{
			cli.StringFlag{Name: "username"},
			cli.StringFlag{Name: "email"},
			cli.StringFlag{Name: "balance", Value: "10000"},
		},
	}
	depositCMD = cli.Command{
		Name:   "deposit",
		Usage:  "credit cash to an account",
		Action: depositAction,
		Flags: []cli.Flag{
			userFlag,
			cli.StringFlag{Name: "amount"},
		},
	}
	historyCMD = cli.Command{
		Name:   "history",
		Usage:  "print the transaction history of an account",
		Action: historyAction,
		Flags: []cli.Flag{
			userFlag,
			cli.StringFlag{Name: "type", Usage: "BUY or SELL"},
			cli.StringFlag{Name: "symbol"},
			cli.IntFlag{Name: "page", Value: 1},
			cli.IntFlag{Name: "limit", Value: 20},
		},
	}
)

func initDatabases() {
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	if err := database.InitReadOnlyDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func serveAction(_ *cli.Context) error {
	logrus.Info("Starting serve CMD")
	initDatabases()

	svc := portfolio.NewDefaultService()
	defer func() { _ = svc.Close() }()

	config := server.GetConfig()
	server.StartServer(config, server.NewRouter(config, svc))
	return nil
}

func quoteAction(c *cli.Context) error {
	symbol := model.NormalizeSymbol(c.Args().First())
	if symbol == "" {
		return cli.NewExitError("a symbol is required", 2)
	}

	refresher := &quotes.QuoteRefresher{
		Log:    logrus.WithField("cmd", "quote"),
		Oracle: pricing.NewOracleFromConfig(pricing.GetConfig()),
	}
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Warn("No database, printing the live price only")
	} else {
		refresher.DB = database.MainDB
	}

	quote, err := refresher.Lookup(context.Background(), symbol)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", quote.Symbol, quote.Price.StringFixed(2))
	if quote.Stored != nil {
		fmt.Printf("stored %s at %s\n", quote.Stored.Price.StringFixed(2), quote.Stored.FetchedAt.Format(time.RFC3339))
	}
	return nil
}

func refreshQuotesAction(_ *cli.Context) error {
	logrus.Info("Starting refresh quotes CMD")
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	ctx, cancel := signalContext()
	defer cancel()

	refresher := &quotes.QuoteRefresher{
		Log:    logrus.WithField("cmd", "refresh_quotes"),
		DB:     database.MainDB,
		Oracle: pricing.NewOracleFromConfig(pricing.GetConfig()),
	}
	if err := refresher.Start(ctx); err != nil {
		logrus.WithError(err).Error("Starting refresh quotes cmd")
		return err
	}
	return nil
}

func createUserAction(c *cli.Context) error {
	username := c.String("username")
	if username == "" {
		return cli.NewExitError("--username is required", 2)
	}
	balance, err := decimal.NewFromString(c.String("balance"))
	if err != nil {
		return cli.NewExitError("--balance must be a number", 2)
	}

	initDatabases()
	svc := portfolio.NewDefaultService()
	defer func() { _ = svc.Close() }()

	user, err := svc.OpenAccount(context.Background(), username, c.String("email"), balance)
	if err != nil {
		return err
	}
	return printJSON(user)
}

func depositAction(c *cli.Context) error {
	amount, err := decimal.NewFromString(c.String("amount"))
	if err != nil {
		return cli.NewExitError("--amount must be a number", 2)
	}

	initDatabases()
	svc := portfolio.NewDefaultService()
	defer func() { _ = svc.Close() }()

	balance, err := svc.Deposit(context.Background(), c.Uint("user"), amount)
	if err != nil {
		return err
	}
	fmt.Printf("balance %s\n", balance.StringFixed(2))
	return nil
}

func historyAction(c *cli.Context) error {
	initDatabases()
	svc := portfolio.NewDefaultService()
	defer func() { _ = svc.Close() }()

	history, err := svc.GetTransactionHistory(context.Background(), c.Uint("user"), portfolio.HistoryFilter{
		Type:   c.String("type"),
		Symbol: c.String("symbol"),
	}, c.Int("page"), c.Int("limit"))
	if err != nil {
		return err
	}
	return printJSON(history)
}
