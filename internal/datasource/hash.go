package datasource

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/zeebo/xxh3"

	"github.com/vanderheijden86/mxmh/pkg/model"
)

// Fingerprint hashes the cleaned records in table order. Two sources with
// the same fingerprint feed the dashboard identical data.
func Fingerprint(t *model.Table) string {
	h := xxh3.New()
	var buf [8]byte
	t.Each(func(_ int, r model.Record) {
		h.WriteString(r.Genre)
		h.Write([]byte{0})
		h.WriteString(string(r.Effect))
		h.Write([]byte{0})
		for _, v := range []float64{r.Hours, r.Depression, r.Anxiety} {
			bits := math.Float64bits(v)
			if math.IsNaN(v) {
				bits = math.Float64bits(math.NaN())
			}
			binary.LittleEndian.PutUint64(buf[:], bits)
			h.Write(buf[:])
		}
	})
	return fmt.Sprintf("%016x", h.Sum64())
}
