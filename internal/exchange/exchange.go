// Package exchange reads and writes portable dataset documents. An export
// is encrypted when a session key is available and plaintext otherwise; the
// "format" tag tells an importer which one it holds.
package exchange

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/rosterkeeper/internal/common"
	"github.com/dmitrijs2005/rosterkeeper/internal/cryptox"
	"github.com/dmitrijs2005/rosterkeeper/internal/models"
)

const (
	FormatEncrypted = "rosterkeeper/encrypted"
	FormatPlain     = "rosterkeeper/plain"
	Version         = 1
)

// Document is the on-disk export shape. Salt is the encryption salt the
// key was derived with, so the password alone recovers the key.
type Document struct {
	Format   string            `json:"format"`
	Version  int               `json:"version"`
	Salt     []byte            `json:"salt,omitempty"`
	Envelope *cryptox.Envelope `json:"envelope,omitempty"`
	Dataset  *models.Dataset   `json:"dataset,omitempty"`
}

// legacyDocument is the bare export written by the browser version.
type legacyDocument struct {
	People      []models.Person   `json:"people"`
	Activities  []models.Activity `json:"activities"`
	Backgrounds map[string]string `json:"backgrounds"`
	Settings    *models.Settings  `json:"settings"`
}

// Export serializes ds. With a live key the dataset is sealed and salt is
// embedded; otherwise a plaintext document is produced.
func Export(ds *models.Dataset, key *cryptox.SessionKey, salt []byte) ([]byte, error) {
	if ds == nil {
		return nil, fmt.Errorf("%w: nothing to export", common.ErrInvalidDocument)
	}
	doc := Document{Version: Version}
	if key.Alive() {
		if len(salt) == 0 {
			return nil, fmt.Errorf("%w: encrypted export needs the encryption salt", common.ErrInvalidDocument)
		}
		env, err := cryptox.SealJSON(ds, key)
		if err != nil {
			return nil, err
		}
		doc.Format = FormatEncrypted
		doc.Salt = salt
		doc.Envelope = env
	} else {
		doc.Format = FormatPlain
		doc.Dataset = ds
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Pending is a parsed import waiting for either a password or a
// confirmation. Nothing is applied until the caller takes the dataset.
type Pending struct {
	doc     Document
	dataset *models.Dataset
}

// Begin parses data and classifies it.
func Begin(data []byte) (*Pending, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", common.ErrInvalidDocument)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidDocument, err)
	}

	if _, tagged := probe["format"]; !tagged {
		return beginLegacy(data, probe)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidDocument, err)
	}
	if doc.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", common.ErrInvalidDocument, doc.Version)
	}

	switch doc.Format {
	case FormatEncrypted:
		if doc.Envelope == nil || len(doc.Salt) == 0 {
			return nil, fmt.Errorf("%w: encrypted document without envelope or salt", common.ErrInvalidDocument)
		}
		return &Pending{doc: doc}, nil
	case FormatPlain:
		if doc.Dataset == nil {
			return nil, fmt.Errorf("%w: plain document without dataset", common.ErrInvalidDocument)
		}
		doc.Dataset.Normalize()
		return &Pending{doc: doc, dataset: doc.Dataset}, nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q", common.ErrInvalidDocument, doc.Format)
	}
}

func beginLegacy(data []byte, probe map[string]json.RawMessage) (*Pending, error) {
	if !isArray(probe["people"]) || !isArray(probe["activities"]) {
		return nil, fmt.Errorf("%w: people and activities arrays are required", common.ErrInvalidDocument)
	}

	var legacy legacyDocument
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidDocument, err)
	}
	ds := &models.Dataset{
		People:      legacy.People,
		Activities:  legacy.Activities,
		Backgrounds: legacy.Backgrounds,
		Settings:    models.DefaultSettings(),
	}
	if legacy.Settings != nil {
		ds.Settings = *legacy.Settings
	}
	ds.Normalize()
	return &Pending{doc: Document{Format: FormatPlain, Version: Version}, dataset: ds}, nil
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

// NeedsPassword reports whether Complete must be called.
func (p *Pending) NeedsPassword() bool {
	return p.doc.Format == FormatEncrypted
}

// Plain returns the dataset of a plaintext document.
func (p *Pending) Plain() (*models.Dataset, error) {
	if p.NeedsPassword() {
		return nil, fmt.Errorf("%w: document is encrypted", common.ErrInvalidDocument)
	}
	return p.dataset, nil
}

// Complete derives the key from password and the embedded salt and opens
// the envelope. A wrong password yields common.ErrAuthenticationFailure.
func (p *Pending) Complete(password []byte) (*models.Dataset, error) {
	if !p.NeedsPassword() {
		return p.dataset, nil
	}
	key, err := cryptox.DeriveEncryptionKey(password, p.doc.Salt)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	ds := &models.Dataset{}
	if err := cryptox.OpenJSON(p.doc.Envelope, key, ds); err != nil {
		return nil, err
	}
	ds.Normalize()
	return ds, nil
}

// ErrCancelled is returned by a password resolver that gave up.
var ErrCancelled = errors.New("import cancelled")

// Import runs both phases. resolvePassword is only called for encrypted
// documents.
func Import(data []byte, resolvePassword func() ([]byte, error)) (*models.Dataset, error) {
	p, err := Begin(data)
	if err != nil {
		return nil, err
	}
	if !p.NeedsPassword() {
		return p.Plain()
	}
	if resolvePassword == nil {
		return nil, ErrCancelled
	}
	password, err := resolvePassword()
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(password)
	return p.Complete(password)
}
