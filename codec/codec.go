package codec

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/databroker/errors"
	"github.com/wippyai/databroker/payload"
	"github.com/wippyai/databroker/record"
)

// Codec reads and writes whole payloads of one family.
type Codec interface {
	Family() payload.Family
	Decode(r io.Reader) (payload.Payload, error)
	Encode(w io.Writer, p payload.Payload) error
}

var (
	codecs = map[payload.Family]Codec{
		payload.FamilyDataset:  TableCodec{Options: record.DefaultOptions()},
		payload.FamilyDocument: DocumentCodec{},
		payload.FamilyGrid:     YAMLCodec{Of: payload.FamilyGrid},
		payload.FamilyPalette:  YAMLCodec{Of: payload.FamilyPalette},
		payload.FamilyMatrix:   YAMLCodec{Of: payload.FamilyMatrix},
		payload.FamilyVector:   YAMLCodec{Of: payload.FamilyVector},
		payload.FamilyImage:    YAMLCodec{Of: payload.FamilyImage},
	}
	codecsMu sync.RWMutex
)

// Register installs c for its family, replacing any previous codec.
func Register(c Codec) {
	codecsMu.Lock()
	defer codecsMu.Unlock()
	codecs[c.Family()] = c
}

// For returns the codec registered for f.
func For(f payload.Family) (Codec, error) {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	c, ok := codecs[f]
	if !ok {
		return nil, errors.New(errors.PhaseCodec, errors.KindBadFamily).
			Value(f).Detail("no codec for %v", f).Build()
	}
	return c, nil
}

// Open decodes the file at path as family f.
func Open(path string, f payload.Family) (payload.Payload, error) {
	c, err := For(f)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.IO(errors.PhaseCodec, path, err)
	}
	defer file.Close()
	return c.Decode(file)
}

// Save encodes p into the file at path, replacing it.
func Save(path string, p payload.Payload) error {
	c, err := For(p.Family())
	if err != nil {
		return err
	}
	return SaveWith(c, path, p)
}

// SaveWith encodes p into the file at path using c.
func SaveWith(c Codec, path string, p payload.Payload) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return errors.IO(errors.PhaseCodec, path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.IO(errors.PhaseCodec, path, cerr)
		}
	}()
	return c.Encode(file, p)
}

func wrongType(want payload.Family, p payload.Payload) error {
	return errors.New(errors.PhaseCodec, errors.KindBadFamily).
		Detail("codec for %v got %v", want, p.Family()).Build()
}

// TableCodec reads and writes datasets as text tables.
type TableCodec struct {
	Options record.Options
}

func (TableCodec) Family() payload.Family { return payload.FamilyDataset }

func (c TableCodec) Decode(r io.Reader) (payload.Payload, error) {
	return record.Collect(record.NewReader(c.Options, record.StreamOpener(r)))
}

func (c TableCodec) Encode(w io.Writer, p payload.Payload) error {
	ds, ok := p.(*payload.Dataset)
	if !ok {
		return wrongType(payload.FamilyDataset, p)
	}
	sink := record.NewTextSink(w, nil, c.Options)
	rd := record.NewReader(c.Options, record.DatasetOpeners(ds)...)
	for {
		rec, err := rd.Next()
		if err != nil {
			return err
		}
		if rec.Kind == record.KindEndOfSet {
			break
		}
		if mode, ok := record.ModeFor(rec.Kind); ok {
			if err := sink.Put(mode, rec); err != nil {
				return err
			}
		}
	}
	return sink.Close()
}

// DocumentCodec reads and writes documents as plain lines.
type DocumentCodec struct{}

func (DocumentCodec) Family() payload.Family { return payload.FamilyDocument }

func (DocumentCodec) Decode(r io.Reader) (payload.Payload, error) {
	doc := &payload.Document{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		doc.Append(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.PhaseCodec, errors.KindIO, err, "read document")
	}
	return doc, nil
}

func (DocumentCodec) Encode(w io.Writer, p payload.Payload) error {
	doc, ok := p.(*payload.Document)
	if !ok {
		return wrongType(payload.FamilyDocument, p)
	}
	bw := bufio.NewWriter(w)
	for _, l := range doc.Lines {
		bw.WriteString(l)
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(errors.PhaseCodec, errors.KindIO, err, "write document")
	}
	return nil
}

// YAMLCodec stores any non-table family as a YAML document.
type YAMLCodec struct {
	Of payload.Family
}

func (c YAMLCodec) Family() payload.Family { return c.Of }

func (c YAMLCodec) Decode(r io.Reader) (payload.Payload, error) {
	p := payload.Empty(c.Of)
	if p == nil {
		return nil, errors.New(errors.PhaseCodec, errors.KindBadFamily).
			Value(c.Of).Detail("no payload type for %v", c.Of).Build()
	}
	if err := yaml.NewDecoder(r).Decode(p); err != nil {
		return nil, errors.Wrap(errors.PhaseCodec, errors.KindInvalidData, err, fmt.Sprintf("decode %v", c.Of))
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c YAMLCodec) Encode(w io.Writer, p payload.Payload) error {
	if p.Family() != c.Of {
		return wrongType(c.Of, p)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return errors.Wrap(errors.PhaseCodec, errors.KindIO, err, fmt.Sprintf("encode %v", c.Of))
	}
	return enc.Close()
}

// Validate checks that a payload's declared shape matches its storage.
func Validate(p payload.Payload) error {
	var want, got int
	switch v := p.(type) {
	case *payload.Grid:
		want, got = v.Header.NX*v.Header.NY, len(v.Data)
	case *payload.Matrix:
		want, got = v.Rows*v.Columns, len(v.Data)
	case *payload.Image:
		want, got = v.Width*v.Height*v.Bands, len(v.Pixels)
	case *payload.Vector:
		for _, c := range v.Columns {
			if len(c) != len(v.Columns[0]) {
				return errors.InvalidData(errors.PhaseCodec, "vector columns differ in length")
			}
		}
		return nil
	default:
		return nil
	}
	if want != got {
		return errors.InvalidData(errors.PhaseCodec,
			fmt.Sprintf("%v declares %d values but holds %d", p.Family(), want, got))
	}
	return nil
}
