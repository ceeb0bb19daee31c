// README: Reads the region-keyed slot document from disk.
package slot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

func DecodeDocument(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding slot document: %w", err)
	}
	return doc, nil
}

func ReadDocument(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening slot document: %w", err)
	}
	defer f.Close()
	return DecodeDocument(f)
}

// LoadFile reads path and loads it into the pool.
func (p *Pool) LoadFile(path string) (LoadReport, error) {
	doc, err := ReadDocument(path)
	if err != nil {
		return LoadReport{}, err
	}
	return p.Load(doc), nil
}
