package extractor

import (
	"fmt"

	"github.com/MeKo-Tech/lbpfeat/internal/store"
)

// Save writes the patch size, every operator with its offsets, and the model
// indices (when set) to w. Entries of an earlier save into w are replaced.
func (e *Extractor) Save(w store.Writer) error {
	patch := store.NewArray(2)
	patch.Data[0], patch.Data[1] = int32(e.patch.Height), int32(e.patch.Width)
	if err := w.SetArray("patch_size", patch); err != nil {
		return err
	}
	w.SetInt("number_of_extractors", len(e.entries))
	for i := len(e.entries); w.Has(entryName(i)); i++ {
		w.Delete(entryName(i))
	}
	for i, en := range e.entries {
		w.Delete(entryName(i))
		g, err := w.Create(entryName(i))
		if err != nil {
			return err
		}
		sub, err := g.Create("lbp")
		if err != nil {
			return err
		}
		if err := en.op.Save(sub); err != nil {
			return fmt.Errorf("save operator %d: %w", i, err)
		}
		offsets := store.NewArray(2, len(en.offsets))
		for k, off := range en.offsets {
			offsets.Set2(0, k, int32(off.Y))
			offsets.Set2(1, k, int32(off.X))
		}
		if err := g.SetArray("offsets", offsets); err != nil {
			return err
		}
		g.SetInt("number_of_offsets", len(en.offsets))
	}
	if len(e.modelIndices) == 0 {
		w.Delete("model_indices")
		return nil
	}
	idx := store.NewArray(len(e.modelIndices))
	copy(idx.Data, e.modelIndices)
	return w.SetArray("model_indices", idx)
}

func entryName(i int) string { return fmt.Sprintf("extractor_%d", i) }

// Load reads an extractor written by Save. A nil decode uses DecodeLBP.
func Load(r store.Reader, decode Decoder) (*Extractor, error) {
	if decode == nil {
		decode = DecodeLBP
	}
	patchArr, err := r.Array("patch_size")
	if err != nil {
		return nil, corrupt(err, "patch size")
	}
	if len(patchArr.Shape) != 1 || patchArr.Len() != 2 {
		return nil, corrupt(nil, "patch size has shape %v, want [2]", patchArr.Shape)
	}
	patch := Size{Height: int(patchArr.Data[0]), Width: int(patchArr.Data[1])}
	if !patch.valid() {
		return nil, corrupt(nil, "patch size %s", patch)
	}
	n, err := r.Int("number_of_extractors")
	if err != nil {
		return nil, corrupt(err, "number of extractors")
	}
	if n < 0 {
		return nil, corrupt(nil, "%d extractors", n)
	}

	e := &Extractor{patch: patch}
	for i := 0; i < n; i++ {
		name := entryName(i)
		g, err := r.Open(name)
		if err != nil {
			return nil, corrupt(err, "%s", name)
		}
		sub, err := g.Open("lbp")
		if err != nil {
			return nil, corrupt(err, "%s/lbp", name)
		}
		op, err := decode(sub)
		if err != nil {
			return nil, corrupt(err, "%s/lbp", name)
		}
		offsets, err := readOffsets(g, name)
		if err != nil {
			return nil, err
		}
		if err := e.AppendOperator(op, offsets); err != nil {
			return nil, corrupt(err, "%s", name)
		}
	}

	if r.Has("model_indices") {
		idx, err := r.Array("model_indices")
		if err != nil {
			return nil, corrupt(err, "model indices")
		}
		if len(idx.Shape) != 1 {
			return nil, corrupt(nil, "model indices have shape %v", idx.Shape)
		}
		if err := e.SetModelIndices(idx.Data); err != nil {
			return nil, corrupt(err, "model indices")
		}
	}
	return e, nil
}

func readOffsets(g store.Reader, name string) ([]Offset, error) {
	arr, err := g.Array("offsets")
	if err != nil {
		return nil, corrupt(err, "%s/offsets", name)
	}
	k, err := g.Int("number_of_offsets")
	if err != nil {
		return nil, corrupt(err, "%s/number_of_offsets", name)
	}
	if len(arr.Shape) != 2 || arr.Shape[0] != 2 || arr.Shape[1] != k || k < 1 {
		return nil, corrupt(nil, "%s/offsets has shape %v for %d offsets", name, arr.Shape, k)
	}
	out := make([]Offset, k)
	for j := range out {
		out[j] = Offset{Y: int(arr.At2(0, j)), X: int(arr.At2(1, j))}
	}
	return out, nil
}

// Reload replaces the operators, offsets and model indices of e with the
// ones stored in r. On error e is unchanged. On success e has no prepared
// image.
func (e *Extractor) Reload(r store.Reader, decode Decoder) error {
	loaded, err := Load(r, decode)
	if err != nil {
		return err
	}
	*e = *loaded
	return nil
}
