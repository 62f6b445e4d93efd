// Command create-admin interactively creates an account with the admin
// role. It reads the same configuration as the server.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/dbx"
	"github.com/dmitrijs2005/receiptkeeper/internal/logging"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/config"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/services"
	"golang.org/x/term"
)

type registrar interface {
	SeedRoles(ctx context.Context) error
	Register(ctx context.Context, caller models.Identity, in models.RegisterInput) (*models.User, error)
}

// bootstrap acts as the caller of Register. It never reaches the store.
var bootstrap = models.Identity{Roles: []models.RoleName{models.RoleAdmin}}

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSONLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	db, err := dbx.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	users := services.NewUserService(db, m, nil, cfg, logger)
	if err := run(ctx, os.Stdin, os.Stdout, readPassword, users); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, in io.Reader, out io.Writer, password func(io.Reader, io.Writer) (string, error), users registrar) error {
	r := bufio.NewReader(in)

	username, err := prompt(r, out, "Username: ")
	if err != nil {
		return err
	}
	email, err := prompt(r, out, "Email (optional): ")
	if err != nil {
		return err
	}
	fullName, err := prompt(r, out, "Full name: ")
	if err != nil {
		return err
	}
	pass, err := password(r, out)
	if err != nil {
		return err
	}
	if pass == "" {
		return errors.New("password must not be empty")
	}

	if err := users.SeedRoles(ctx); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}

	input := models.RegisterInput{
		Username: username,
		FullName: fullName,
		Password: pass,
		Roles:    []models.RoleName{models.RoleAdmin, models.RoleUser},
	}
	if email != "" {
		input.Email = &email
	}

	user, err := users.Register(ctx, bootstrap, input)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	fmt.Fprintf(out, "Admin %q created with id %d\n", user.Username, user.ID)
	return nil
}

func prompt(r *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(line), nil
}

// readPassword disables echo when stdin is a terminal and falls back to a
// plain line read otherwise.
func readPassword(r io.Reader, out io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(bufio.NewReader(r), out, "Password: ")
	}

	fmt.Fprint(out, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprint(out, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	defer common.WipeByteArray(first)
	defer common.WipeByteArray(second)
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
