package index

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/calebmt/groundwork/internal/models"
)

// Persistence is a companion file pair: a binary vector artifact and a
// JSON sidecar with the texts and metadata. Loading either alone is a
// reported error; the pair must agree on dimension and entry count.

const (
	indexMagic   = "GWIX"
	indexVersion = uint32(1)
)

type sidecar struct {
	EmbeddingDim   int                `json:"embedding_dim"`
	EmbeddingModel string             `json:"embedding_model"`
	Texts          []string           `json:"texts"`
	Metadata       []models.ChunkMeta `json:"metadata"`
}

// Save writes both artifacts. Each is written to a temporary file and
// renamed into place, so a crash never leaves a half-written pair behind.
func (ix *Index) Save(indexPath, metaPath string) error {
	if err := os.MkdirAll(filepath.Dir(indexPath), 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	if err := ix.writeVectors(indexPath); err != nil {
		return err
	}
	return ix.writeSidecar(metaPath)
}

func (ix *Index) writeVectors(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating vector artifact: %w", err)
	}

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(indexMagic); err != nil {
		f.Close()
		return err
	}
	header := []uint32{indexVersion, uint32(ix.dim), uint32(len(ix.vectors))}
	for _, h := range header {
		if err := binary.Write(w, binary.LittleEndian, h); err != nil {
			f.Close()
			return err
		}
	}
	for _, v := range ix.vectors {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (ix *Index) writeSidecar(path string) error {
	data, err := json.MarshalIndent(sidecar{
		EmbeddingDim:   ix.dim,
		EmbeddingModel: ix.model,
		Texts:          ix.texts,
		Metadata:       ix.meta,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding index metadata: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing index metadata: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load restores an index from a saved pair. It validates the artifact
// header and the mutual consistency of the pair, failing descriptively
// on mismatch rather than serving corrupted results.
func Load(indexPath, metaPath string) (*Index, error) {
	f, err := os.Open(indexPath)
	if err != nil {
		return nil, fmt.Errorf("opening vector artifact: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic := make([]byte, len(indexMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != indexMagic {
		return nil, fmt.Errorf("%s is not a vector index artifact", indexPath)
	}

	var version, dim, count uint32
	for _, p := range []*uint32{&version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return nil, fmt.Errorf("reading vector artifact header: %w", err)
		}
	}
	if version != indexVersion {
		return nil, fmt.Errorf("unsupported index version %d", version)
	}
	if dim == 0 {
		return nil, fmt.Errorf("vector artifact declares zero dimension")
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		v := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("vector artifact truncated at entry %d: %w", i, err)
		}
		vectors[i] = v
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("opening index metadata: %w", err)
	}
	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing index metadata: %w", err)
	}

	if sc.EmbeddingDim != int(dim) {
		return nil, fmt.Errorf("metadata dimension %d disagrees with vector artifact dimension %d",
			sc.EmbeddingDim, dim)
	}
	if len(sc.Texts) != int(count) || len(sc.Metadata) != int(count) {
		return nil, fmt.Errorf("metadata has %d texts and %d entries for %d vectors",
			len(sc.Texts), len(sc.Metadata), count)
	}

	return &Index{
		dim:     int(dim),
		model:   sc.EmbeddingModel,
		vectors: vectors,
		texts:   sc.Texts,
		meta:    sc.Metadata,
	}, nil
}
