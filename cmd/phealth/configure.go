package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pipehealth/pipehealth-go/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var configureDSN string

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Store the Postgres connection string",
	Long: `Stores the Postgres DSN in the OS keyring so it never lives in a config
file. Pass --dsn, or omit it to be prompted (input is hidden on a TTY).`,
	RunE: runConfigure,
}

var configureShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored connection string (masked)",
	RunE:  runConfigureShow,
}

var configureClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored connection string",
	RunE:  runConfigureClear,
}

func init() {
	configureCmd.Flags().StringVar(&configureDSN, "dsn", "", "Postgres connection string")
	configureCmd.AddCommand(configureShowCmd)
	configureCmd.AddCommand(configureClearCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	km := config.NewKeyringManager()
	if !km.IsAvailable() {
		return fmt.Errorf("OS keyring unavailable; set PIPEHEALTH_POSTGRES_DSN instead")
	}

	dsn := configureDSN
	if dsn == "" {
		var err error
		dsn, err = promptSecret("Postgres DSN: ")
		if err != nil {
			return err
		}
	}
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return fmt.Errorf("empty connection string")
	}

	if err := km.SavePostgresDSN(dsn); err != nil {
		return err
	}
	fmt.Printf("✅ Stored %s in keyring\n", config.MaskSecret(dsn))
	return nil
}

func runConfigureShow(cmd *cobra.Command, args []string) error {
	km := config.NewKeyringManager()
	dsn, err := km.GetPostgresDSN()
	if err != nil {
		return err
	}
	if dsn == "" {
		fmt.Println("No connection string stored. Run 'phealth configure' to set one.")
		return nil
	}
	fmt.Printf("Postgres DSN: %s\n", config.MaskSecret(dsn))
	return nil
}

func runConfigureClear(cmd *cobra.Command, args []string) error {
	km := config.NewKeyringManager()
	if err := km.DeletePostgresDSN(); err != nil {
		return err
	}
	fmt.Println("✅ Connection string removed from keyring")
	return nil
}

func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return line, nil
}
