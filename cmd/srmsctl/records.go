package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"srms_backend/internals/configs"
	database "srms_backend/internals/databases"
	"srms_backend/internals/features/certificates/fingerprint"
	"srms_backend/internals/features/certificates/ledger"
	"srms_backend/internals/features/certificates/records/repository"
	recordService "srms_backend/internals/features/certificates/records/service"
)

type fileDigest struct {
	Path        string `json:"path"`
	Fingerprint string `json:"fingerprint"`
	CID         string `json:"cid"`
	Size        int    `json:"size"`
}

func digestFiles(paths []string) ([]fileDigest, error) {
	out := make([]fileDigest, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		c, err := fingerprint.DocumentCID(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		out = append(out, fileDigest{
			Path:        p,
			Fingerprint: fingerprint.HashDocument(data).String(),
			CID:         c.String(),
			Size:        len(data),
		})
	}
	return out, nil
}

// deriveFromFiles expects the files in canonical order: certificate, report
// card, photo.
func deriveFromFiles(studentID string, paths []string) (string, error) {
	digests, err := digestFiles(paths)
	if err != nil {
		return "", err
	}
	fps := make([]fingerprint.Fingerprint, 0, len(digests))
	for _, d := range digests {
		fps = append(fps, fingerprint.Fingerprint(d.Fingerprint))
	}
	return fingerprint.DeriveRecordID(studentID, fps)
}

func printJSON(w io.Writer, v interface{}) error {
	raw, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(raw))
	return err
}

func hashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <file>...",
		Short: "Print the SHA-256 fingerprint and CID of each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			digests, err := digestFiles(args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), digests)
		},
	}
}

func deriveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "derive <student-id> <certificate> <report-card> <photo>",
		Short: "Compute the record id a set of documents would be issued under",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := deriveFromFiles(args[0], args[1:])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}
}

func openLedger(ctx context.Context, env *configs.Env) (ledger.Ledger, func(), error) {
	l, err := ledger.New(ctx, ledger.Config{
		Driver:          env.LedgerDriver,
		DataDir:         env.LedgerDataDir,
		RPCURL:          env.RPCURL,
		PrivateKey:      env.PrivateKey,
		ContractAddress: env.StudentRegistryAddress,
	})
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if c, ok := l.(io.Closer); ok {
			_ = c.Close()
		}
	}
	return l, closeFn, nil
}

func verifyCommand() *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "verify <record-id>",
		Short: "Look up a record id in the store and print the public result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv()
			if err != nil {
				return err
			}
			db, err := openDB(env)
			if err != nil {
				return err
			}
			defer database.Close(db)

			l, closeLedger, err := openLedger(cmd.Context(), env)
			if err != nil {
				return err
			}
			defer closeLedger()

			verifier := recordService.NewVerificationService(repository.NewRecordStore(db), l, env.PublicBaseURL, env.LedgerTimeout)
			res, err := verifier.Verify(cmd.Context(), args[0], recordService.VerifyOptions{ConfirmOnChain: confirm})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "also read the ledger back")
	return cmd
}

func ledgerVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ledger-verify",
		Short: "Check the hash chain of the local attestation log",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv()
			if err != nil {
				return err
			}
			l, closeLedger, err := openLedger(cmd.Context(), env)
			if err != nil {
				return err
			}
			defer closeLedger()

			bl, ok := l.(*ledger.BadgerLedger)
			if !ok {
				return fmt.Errorf("ledger-verify needs LEDGER_DRIVER=%s, got %q", ledger.DriverLocal, env.LedgerDriver)
			}
			n, err := bl.Verify(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d entries\n", n)
			return err
		},
	}
}
