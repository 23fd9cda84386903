package document

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ramsesware/0FF1C3-T00LS/core"
	"github.com/ramsesware/0FF1C3-T00LS/core/opc"
)

// ─── Property model ──────────────────────────────────────────────────────────

// officeProps is the union of the document properties exposed by the three
// package kinds.
type officeProps struct {
	Identifier     string
	Title          string
	Subject        string
	Description    string
	Creator        string
	LastModifiedBy string
	Created        string
	Modified       string
	Category       string
	Language       string
	ContentStatus  string
	ContentType    string
	Keywords       string
	Revision       string
	LastPrinted    string
	Version        string
	Application    string
	Company        string
}

// generatorCreators are the creator names written by spreadsheet libraries
// when a workbook is produced programmatically.
var generatorCreators = map[string]bool{
	"openpyxl": true,
	"xuri":     true,
}

type officeField struct {
	key      string
	category string
	get      func(p *officeProps) string
	dates    bool
}

func prop(key string, get func(p *officeProps) string) officeField {
	return officeField{key: key, category: "Core Properties", get: get}
}

func dateProp(key string, get func(p *officeProps) string) officeField {
	return officeField{key: key, category: "Core Properties", get: get, dates: true}
}

func appProp(key string, get func(p *officeProps) string) officeField {
	return officeField{key: key, category: "App Properties", get: get}
}

// officeFields returns the record layout of a package kind.
func officeFields(format core.FormatID) []officeField {
	fields := []officeField{
		prop("Identificador", func(p *officeProps) string { return p.Identifier }),
		prop("Título", func(p *officeProps) string { return p.Title }),
		prop("Tema", func(p *officeProps) string { return p.Subject }),
	}
	if format == core.FmtXLSX {
		fields = append(fields, prop("Descripción", func(p *officeProps) string { return p.Description }))
	}
	fields = append(fields,
		prop("Autor", func(p *officeProps) string { return p.Creator }),
		prop("Autor anterior", func(p *officeProps) string { return p.LastModifiedBy }),
		dateProp("Fecha de creación", func(p *officeProps) string { return p.Created }),
		dateProp("Última modificación", func(p *officeProps) string { return p.Modified }),
		prop("Categoría", func(p *officeProps) string { return p.Category }),
		prop("Idioma", func(p *officeProps) string { return p.Language }),
		prop("Estado del contenido", func(p *officeProps) string { return p.ContentStatus }),
	)
	if format == core.FmtPPTX {
		fields = append(fields, prop("Tipo de contenido", func(p *officeProps) string { return p.ContentType }))
	}
	fields = append(fields,
		prop("Palabras clave", func(p *officeProps) string { return p.Keywords }),
		prop("Revisión", func(p *officeProps) string { return p.Revision }),
		dateProp("Última impresión", func(p *officeProps) string { return p.LastPrinted }),
	)
	if format != core.FmtXLSX {
		fields = append(fields, prop("Comentarios", func(p *officeProps) string { return p.Description }))
	}
	return append(fields,
		prop("Versión", func(p *officeProps) string { return p.Version }),
		appProp("Aplicación", func(p *officeProps) string { return p.Application }),
		appProp("Empresa", func(p *officeProps) string { return p.Company }),
	)
}

// ─── Extract ─────────────────────────────────────────────────────────────────

func extractOffice(path string, format core.FormatID) (*core.Outcome, error) {
	var (
		props *officeProps
		err   error
	)
	if format == core.FmtXLSX {
		props, err = readWorkbookProps(path)
	} else {
		props, err = readPackageProps(path)
	}
	if err != nil {
		return nil, err
	}

	m := core.NewMetadata(path, formatInfo[format].Name)
	for _, f := range officeFields(format) {
		v := strings.TrimSpace(f.get(props))
		if f.dates {
			v = formatW3CDTF(v)
		}
		m.Set(f.key, core.OrNA(v), f.category)
	}
	return &core.Outcome{Path: path, Format: format, Status: core.StatusOK, Metadata: m}, nil
}

// OPC core properties XML
type opcCoreProps struct {
	XMLName        xml.Name `xml:"coreProperties"`
	Title          string   `xml:"http://purl.org/dc/elements/1.1/ title"`
	Subject        string   `xml:"http://purl.org/dc/elements/1.1/ subject"`
	Creator        string   `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Description    string   `xml:"http://purl.org/dc/elements/1.1/ description"`
	Identifier     string   `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Language       string   `xml:"http://purl.org/dc/elements/1.1/ language"`
	Keywords       string   `xml:"keywords"`
	LastModifiedBy string   `xml:"lastModifiedBy"`
	Revision       string   `xml:"revision"`
	LastPrinted    string   `xml:"lastPrinted"`
	Category       string   `xml:"category"`
	ContentStatus  string   `xml:"contentStatus"`
	ContentType    string   `xml:"contentType"`
	Version        string   `xml:"version"`
	Created        string   `xml:"http://purl.org/dc/terms/ created"`
	Modified       string   `xml:"http://purl.org/dc/terms/ modified"`
}

type opcAppProps struct {
	XMLName     xml.Name `xml:"Properties"`
	Application string   `xml:"Application"`
	Company     string   `xml:"Company"`
}

// readPackageProps reads docx and pptx properties from the package parts.
func readPackageProps(path string) (*officeProps, error) {
	coreData, err := opc.ReadPart(path, opc.CorePropsPart)
	if err != nil {
		return nil, err
	}
	appData, err := opc.ReadPart(path, opc.AppPropsPart)
	if err != nil {
		return nil, err
	}

	var cp opcCoreProps
	if err := decodePart(coreData, &cp); err != nil {
		return nil, core.Corrupt(err, "malformed core properties", path)
	}
	var ap opcAppProps
	if err := decodePart(appData, &ap); err != nil {
		return nil, core.Corrupt(err, "malformed app properties", path)
	}

	return &officeProps{
		Identifier:     cp.Identifier,
		Title:          cp.Title,
		Subject:        cp.Subject,
		Description:    cp.Description,
		Creator:        cp.Creator,
		LastModifiedBy: cp.LastModifiedBy,
		Created:        cp.Created,
		Modified:       cp.Modified,
		Category:       cp.Category,
		Language:       cp.Language,
		ContentStatus:  cp.ContentStatus,
		ContentType:    cp.ContentType,
		Keywords:       cp.Keywords,
		Revision:       cp.Revision,
		LastPrinted:    cp.LastPrinted,
		Version:        cp.Version,
		Application:    ap.Application,
		Company:        ap.Company,
	}, nil
}

// decodePart unmarshals an optional part; a missing part leaves v zero.
func decodePart(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	err := xml.NewDecoder(bytes.NewReader(data)).Decode(v)
	if err == io.EOF {
		return nil
	}
	return err
}

// readWorkbookProps reads xlsx properties through the spreadsheet
// library's own accessors.
func readWorkbookProps(path string) (*officeProps, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, core.Corrupt(err, "failed to open workbook", path)
	}
	defer f.Close()

	dp, err := f.GetDocProps()
	if err != nil {
		return nil, core.Corrupt(err, "failed to read workbook properties", path)
	}
	props := &officeProps{
		Identifier:     dp.Identifier,
		Title:          dp.Title,
		Subject:        dp.Subject,
		Description:    dp.Description,
		Creator:        dp.Creator,
		LastModifiedBy: dp.LastModifiedBy,
		Created:        dp.Created,
		Modified:       dp.Modified,
		Category:       dp.Category,
		Language:       dp.Language,
		ContentStatus:  dp.ContentStatus,
		Keywords:       dp.Keywords,
		Revision:       dp.Revision,
		Version:        dp.Version,
	}
	if ap, err := f.GetAppProps(); err == nil {
		props.Application = ap.Application
		props.Company = ap.Company
	}

	// Workbooks generated by a library carry its name as creator and the
	// generation time as timestamps; those fields are not authored data.
	if generatorCreators[strings.TrimSpace(props.Creator)] {
		props.Creator = ""
		props.Created = ""
		props.Modified = ""
	}
	return props, nil
}

// formatW3CDTF renders a W3CDTF timestamp; other values pass through.
func formatW3CDTF(s string) string {
	if s == "" {
		return s
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02 15:04:05")
		}
	}
	return s
}

// ─── Strip ───────────────────────────────────────────────────────────────────

func stripOffice(path string, format core.FormatID) (*core.Outcome, error) {
	if core.FamilyOf(format) != core.FamilyOffice {
		return core.Unsupported(path, format), nil
	}
	if err := opc.Rewrite(path, opc.MetadataParts, opc.ClearPart); err != nil {
		return nil, err
	}
	return core.Stripped(path, format), nil
}
