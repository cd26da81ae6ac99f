package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"filippo.io/age"
	"github.com/fystack/modelstore/pkg/logger"
	"github.com/fystack/modelstore/pkg/schema"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

const minPassphraseLength = 12

type exportedBuffer struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// exportDocument is the JSON layout written by the export command.
type exportDocument struct {
	PartyModelID string                    `json:"party_model_id"`
	ModelVersion string                    `json:"model_version"`
	ExportedAt   string                    `json:"exported_at"`
	Meta         map[string]string         `json:"meta"`
	Buffers      map[string]exportedBuffer `json:"buffers"`
}

func buildExportDocument(partyModelID, modelVersion string, meta map[string]string, buffers map[string]proto.Message) (*exportDocument, error) {
	doc := &exportDocument{
		PartyModelID: partyModelID,
		ModelVersion: modelVersion,
		ExportedAt:   time.Now().UTC().Format(time.RFC3339),
		Meta:         meta,
		Buffers:      make(map[string]exportedBuffer, len(buffers)),
	}
	for name, msg := range buffers {
		value, err := protojson.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("format buffer %q: %w", name, err)
		}
		doc.Buffers[name] = exportedBuffer{Type: schema.NameOf(msg), Value: value}
	}
	return doc, nil
}

// writeExport writes doc to w, age-encrypted when passphrase is set.
func writeExport(w io.Writer, doc *exportDocument, passphrase string) error {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	if passphrase == "" {
		_, err = w.Write(append(body, '\n'))
		return err
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("failed to create scrypt recipient: %w", err)
	}
	encWriter, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("failed to create encrypted writer: %w", err)
	}
	if _, err := encWriter.Write(body); err != nil {
		return fmt.Errorf("failed to write encrypted data: %w", err)
	}
	return encWriter.Close()
}

// readExport reverses writeExport.
func readExport(r io.Reader, passphrase string) (*exportDocument, error) {
	if passphrase != "" {
		identity, err := age.NewScryptIdentity(passphrase)
		if err != nil {
			return nil, err
		}
		r, err = age.Decrypt(r, identity)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt export: %w", err)
		}
	}
	var doc exportDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}
	return &doc, nil
}

func exportPipeline(ctx context.Context, c *cli.Command) error {
	var passphrase string
	if c.Bool("encrypt") {
		var err error
		passphrase, err = promptNewPassword("Enter passphrase to encrypt export: ")
		if err != nil {
			return err
		}
		if len(passphrase) < minPassphraseLength {
			return fmt.Errorf("passphrase too short (minimum %d characters)", minPassphraseLength)
		}
	}

	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	party, version := c.String("party"), c.String("version")
	buffers, err := a.store.Collect(party, version)
	if err != nil {
		return err
	}
	meta, err := a.store.GetMeta(party, version)
	if err != nil {
		return err
	}
	doc, err := buildExportDocument(party, version, meta, buffers)
	if err != nil {
		return err
	}

	output := c.String("output")
	if output == "" {
		return writeExport(os.Stdout, doc, passphrase)
	}

	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()
	if err := writeExport(f, doc, passphrase); err != nil {
		return err
	}

	logger.Info("Exported model version",
		"party_model_id", party,
		"model_version", version,
		"buffers", len(doc.Buffers),
		"file", output,
		"encrypted", passphrase != "",
	)
	return nil
}
