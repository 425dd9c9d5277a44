// useradd creates an account or resets the password of an existing one.
//
// The password is read from the terminal without echo, or from stdin when
// --password-stdin is set:
//
//	useradd --username alice
//	printf 'secret-pass' | useradd --username alice --password-stdin
package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"todo-serverless/internal/auth"
	"todo-serverless/internal/db"
	"todo-serverless/internal/user"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// openDatabase is a test seam for db.Open.
var openDatabase = func(url string) (*sql.DB, error) {
	return db.Open(url, db.PoolOptions{MaxOpenConns: 1, MaxIdleConns: 1})
}

// runMigrations is a test seam for db.RunMigrations.
var runMigrations = db.RunMigrations

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	_ = godotenv.Load()

	var (
		username      string
		databaseURL   string
		cost          int
		passwordStdin bool
		migrate       bool
	)

	flagSet := pflag.NewFlagSet("useradd", pflag.ContinueOnError)
	flagSet.SetOutput(stdout)
	flagSet.StringVarP(&username, "username", "u", "", "account username (required)")
	flagSet.StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
	flagSet.IntVar(&cost, "bcrypt-cost", bcrypt.DefaultCost, "bcrypt work factor")
	flagSet.BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin instead of the terminal")
	flagSet.BoolVar(&migrate, "migrate", false, "apply pending migrations first")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" {
		return errors.New("--username is required")
	}
	if strings.TrimSpace(databaseURL) == "" {
		return errors.New("--database-url or DATABASE_URL is required")
	}

	password, err := promptPassword(stdin, stdout, passwordStdin)
	if err != nil {
		return err
	}
	if err := user.ValidateCredentials(username, password); err != nil {
		return err
	}

	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return err
	}

	database, err := openDatabase(databaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if migrate {
		if err := runMigrations(ctx, database); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	created, err := user.NewRepository(database).Upsert(ctx, username, hash)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "user %q saved (id %d)\n", created.Username, created.ID)
	return nil
}

func promptPassword(stdin io.Reader, stdout io.Writer, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(stdout, "Password: ")
	first, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(stdout)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Fprint(stdout, "Repeat password: ")
	second, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(stdout)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
