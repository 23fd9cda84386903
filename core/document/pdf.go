package document

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/ramsesware/0FF1C3-T00LS/core"
)

func init() {
	// The engine never reads pdfcpu's user configuration directory.
	api.DisableConfigDir()
}

// ─── Read ────────────────────────────────────────────────────────────────────

type pdfDoc struct {
	data      []byte
	ctx       *model.Context
	protected string // "encrypted", "signed" or ""
}

func openPDF(path string) (*pdfDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.IOError(err, "failed to read PDF", path)
	}
	doc := &pdfDoc{data: data}

	// The raw check runs first: the parser cannot open most encrypted files.
	if doc.protected = rawProtection(data); doc.protected != "" {
		return doc, nil
	}

	ctx, err := parsePDF(data)
	if err != nil {
		return nil, core.Corrupt(err, "failed to parse PDF", path)
	}
	if ctx.Root == nil {
		return nil, core.Corrupt(goerr.New("document has no catalog"), "failed to parse PDF", path)
	}
	doc.ctx = ctx
	doc.protected = contextProtection(ctx)
	return doc, nil
}

func parsePDF(data []byte) (ctx *model.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.ReadContext(bytes.NewReader(data), conf)
}

// rawProtection reports encryption named in a trailer dictionary. Only
// trailers are read, so content streams that mention the key do not count.
func rawProtection(data []byte) string {
	for _, d := range trailerDicts(data) {
		if bytes.Contains(d, []byte("/Encrypt")) {
			return "encrypted"
		}
	}
	return ""
}

// trailerDicts returns every classic trailer dictionary of data and the
// dictionary of the xref stream the last startxref points at.
func trailerDicts(data []byte) [][]byte {
	var dicts [][]byte
	kw := []byte("trailer")
	for off := 0; ; {
		i := bytes.Index(data[off:], kw)
		if i < 0 {
			break
		}
		i += off
		off = i + len(kw)
		if i > 0 && data[i-1] != '\n' && data[i-1] != '\r' {
			continue
		}
		if d := dictAt(data, off); d != nil {
			dicts = append(dicts, d)
		}
	}

	i := bytes.LastIndex(data, []byte("startxref"))
	if i < 0 {
		return dicts
	}
	fields := bytes.Fields(data[i+len("startxref"):])
	if len(fields) == 0 {
		return dicts
	}
	xref, err := strconv.Atoi(string(fields[0]))
	if err != nil || xref < 0 || xref >= len(data) || bytes.HasPrefix(data[xref:], []byte("xref")) {
		return dicts
	}
	if d := dictAt(data, xref); d != nil {
		dicts = append(dicts, d)
	}
	return dicts
}

// dictAt returns the dictionary starting at the first "<<" at or after off,
// up to its matching ">>".
func dictAt(data []byte, off int) []byte {
	start := bytes.Index(data[off:], []byte("<<"))
	if start < 0 {
		return nil
	}
	start += off
	depth := 0
	for i := start; i+1 < len(data); i++ {
		switch {
		case data[i] == '<' && data[i+1] == '<':
			depth++
			i++
		case data[i] == '>' && data[i+1] == '>':
			depth--
			i++
			if depth == 0 {
				return data[start : i+1]
			}
		}
	}
	return nil
}

func contextProtection(ctx *model.Context) string {
	if ctx.Encrypt != nil {
		return "encrypted"
	}
	catalog, err := ctx.DereferenceDict(*ctx.Root)
	if err != nil || catalog == nil {
		return ""
	}
	if af, ok := catalog.Find("AcroForm"); ok {
		form, err := ctx.DereferenceDict(af)
		// SigFlags bit 1: SignaturesExist.
		if err == nil && form != nil {
			if flags := form.IntEntry("SigFlags"); flags != nil && *flags&1 != 0 {
				return "signed"
			}
		}
	}
	if hasSignature(ctx, catalog, map[int]bool{}, 0) {
		return "signed"
	}
	return ""
}

// hasSignature reports whether a signature dictionary is reachable from o.
func hasSignature(ctx *model.Context, o types.Object, seen map[int]bool, depth int) bool {
	if depth > 64 {
		return false
	}
	switch v := o.(type) {
	case types.IndirectRef:
		nr := v.ObjectNumber.Value()
		if seen[nr] {
			return false
		}
		seen[nr] = true
		obj, err := ctx.Dereference(v)
		if err != nil {
			return false
		}
		return hasSignature(ctx, obj, seen, depth+1)
	case types.Dict:
		if _, ok := v["ByteRange"]; ok {
			return true
		}
		if typ := v.Type(); typ != nil && *typ == "Sig" {
			return true
		}
		for _, k := range sortedKeys(v) {
			if hasSignature(ctx, v[k], seen, depth+1) {
				return true
			}
		}
	case types.StreamDict:
		return hasSignature(ctx, v.Dict, seen, depth+1)
	case types.Array:
		for _, e := range v {
			if hasSignature(ctx, e, seen, depth+1) {
				return true
			}
		}
	}
	return false
}

func protectedOutcome(path, reason string) *core.Outcome {
	return &core.Outcome{
		Path:   path,
		Format: core.FmtPDF,
		Status: core.StatusProtected,
		Message: fmt.Sprintf("Archivo: %s - El PDF está protegido (%s); no se procesaron sus metadatos.",
			filepath.Base(path), reason),
	}
}

// ─── Extract ─────────────────────────────────────────────────────────────────

func extractPDF(path string) (*core.Outcome, error) {
	doc, err := openPDF(path)
	if err != nil {
		return nil, err
	}
	if doc.protected != "" {
		return protectedOutcome(path, doc.protected), nil
	}

	m := core.NewMetadata(path, "PDF")
	if doc.ctx.Info != nil {
		info, err := doc.ctx.DereferenceDict(*doc.ctx.Info)
		if err != nil {
			return nil, core.Corrupt(err, "failed to read info dictionary", path)
		}
		keys := make([]string, 0, len(info))
		for k := range info {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			m.Set(k, pdfText(doc.ctx, info[k]), "Info")
		}
	}
	return &core.Outcome{Path: path, Format: core.FmtPDF, Status: core.StatusOK, Metadata: m}, nil
}

// pdfText renders an info dictionary value as text.
func pdfText(ctx *model.Context, o types.Object) string {
	o, err := ctx.Dereference(o)
	if err != nil || o == nil {
		return core.NotAvailable
	}
	switch v := o.(type) {
	case types.StringLiteral:
		s, err := types.StringLiteralToString(v)
		if err != nil {
			return core.NotAvailable
		}
		return s
	case types.HexLiteral:
		s, err := types.HexLiteralToString(v)
		if err != nil {
			return core.NotAvailable
		}
		return s
	case types.Name:
		return v.Value()
	default:
		return v.String()
	}
}

// ─── Strip ───────────────────────────────────────────────────────────────────

func stripPDF(path string) (*core.Outcome, error) {
	doc, err := openPDF(path)
	if err != nil {
		return nil, err
	}
	if doc.protected != "" {
		return protectedOutcome(path, doc.protected), nil
	}

	out, err := rebuildPDF(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to rebuild PDF", goerr.T(core.TagCorrupt), goerr.V("path", path))
	}
	if err := core.WriteFileAtomic(path, out); err != nil {
		return nil, err
	}
	return core.Stripped(path, core.FmtPDF), nil
}

// pdfRebuilder collects the object graph reachable from the catalog.
type pdfRebuilder struct {
	ctx  *model.Context
	objs map[int]types.Object
	gens map[int]int
}

// rebuildPDF writes a new classic-xref document holding every object
// reachable from the catalog, an empty info dictionary and no XMP stream.
// Stream bytes are copied in their encoded form.
func rebuildPDF(doc *pdfDoc) ([]byte, error) {
	ctx := doc.ctx
	catalog, err := ctx.DereferenceDict(*ctx.Root)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read catalog")
	}
	if catalog == nil {
		return nil, goerr.New("document has no catalog")
	}

	clean := types.Dict{}
	for k, v := range catalog {
		if k == "Metadata" {
			continue
		}
		clean[k] = v
	}

	b := &pdfRebuilder{ctx: ctx, objs: map[int]types.Object{}, gens: map[int]int{}}
	rootNr := ctx.Root.ObjectNumber.Value()
	b.objs[rootNr] = clean
	b.gens[rootNr] = ctx.Root.GenerationNumber.Value()
	if err := b.visit(clean); err != nil {
		return nil, err
	}
	return b.write(pdfHeaderVersion(doc.data), rootNr)
}

func (b *pdfRebuilder) visit(o types.Object) error {
	switch v := o.(type) {
	case types.IndirectRef:
		nr := v.ObjectNumber.Value()
		if _, ok := b.objs[nr]; ok {
			return nil
		}
		obj, err := b.ctx.Dereference(v)
		if err != nil {
			return goerr.Wrap(err, "failed to resolve object", goerr.V("object", nr))
		}
		b.objs[nr] = obj
		b.gens[nr] = v.GenerationNumber.Value()
		return b.visit(obj)
	case types.Dict:
		for _, k := range sortedKeys(v) {
			if err := b.visit(v[k]); err != nil {
				return err
			}
		}
	case types.Array:
		for _, e := range v {
			if err := b.visit(e); err != nil {
				return err
			}
		}
	case types.StreamDict:
		for _, k := range sortedKeys(v.Dict) {
			if k == "Length" {
				continue
			}
			if err := b.visit(v.Dict[k]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *pdfRebuilder) write(version string, rootNr int) ([]byte, error) {
	nums := make([]int, 0, len(b.objs))
	maxNr := 0
	for nr := range b.objs {
		nums = append(nums, nr)
		if nr > maxNr {
			maxNr = nr
		}
	}
	sort.Ints(nums)
	infoNr := maxNr + 1

	var buf bytes.Buffer
	buf.WriteString("%PDF-" + version + "\n%\xE2\xE3\xCF\xD3\n")

	offsets := make(map[int]int, len(nums)+1)
	for _, nr := range nums {
		offsets[nr] = buf.Len()
		fmt.Fprintf(&buf, "%d %d obj\n", nr, b.gens[nr])
		if err := writePDFObject(&buf, b.objs[nr]); err != nil {
			return nil, goerr.Wrap(err, "failed to write object", goerr.V("object", nr))
		}
		buf.WriteString("\nendobj\n")
	}
	offsets[infoNr] = buf.Len()
	fmt.Fprintf(&buf, "%d 0 obj\n<<>>\nendobj\n", infoNr)

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", infoNr+1)
	buf.WriteString("0000000000 65535 f \n")
	for nr := 1; nr <= infoNr; nr++ {
		off, ok := offsets[nr]
		if !ok {
			buf.WriteString("0000000000 65535 f \n")
			continue
		}
		fmt.Fprintf(&buf, "%010d %05d n \n", off, b.gens[nr])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d %d R /Info %d 0 R >>\n", infoNr+1, rootNr, b.gens[rootNr], infoNr)
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xref)
	return buf.Bytes(), nil
}

func writePDFObject(buf *bytes.Buffer, o types.Object) error {
	switch v := o.(type) {
	case nil:
		buf.WriteString("null")
	case types.StreamDict:
		raw := v.Raw
		if raw == nil && v.Content != nil {
			if err := v.Encode(); err != nil {
				return err
			}
			raw = v.Raw
		}
		d := types.Dict{}
		for k, e := range v.Dict {
			d[k] = e
		}
		d["Length"] = types.Integer(len(raw))
		buf.WriteString(d.PDFString())
		buf.WriteString("\nstream\n")
		buf.Write(raw)
		buf.WriteString("\nendstream")
	default:
		buf.WriteString(o.PDFString())
	}
	return nil
}

func pdfHeaderVersion(data []byte) string {
	const prefix = "%PDF-"
	if !bytes.HasPrefix(data, []byte(prefix)) {
		return "1.7"
	}
	v := data[len(prefix):]
	for i, c := range v {
		if c == '\r' || c == '\n' || c == ' ' || i >= 3 {
			v = v[:i]
			break
		}
	}
	if len(v) == 0 {
		return "1.7"
	}
	return string(v)
}

func sortedKeys(d types.Dict) []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
