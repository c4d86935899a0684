package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/permissionlessweb/bs-accounts/pkg/canonicalize"
	"github.com/permissionlessweb/bs-accounts/pkg/versioning"
)

// Source holds the raw documents of one contract before modelling.
type Source struct {
	// Name is the contract name used in errors and generated identifiers.
	Name            string
	Path            string
	ContractName    string
	ContractVersion string
	IDLVersion      string
	// Messages maps each present kind to its root document.
	Messages map[Kind]json.RawMessage
	// Responses maps query tags to response root documents, in file order.
	Responses *orderedmap.OrderedMap[string, json.RawMessage]
}

// docIdentity is one entry of the contract fingerprint.
type docIdentity struct {
	Kind        string `json:"kind"`
	Fingerprint string `json:"fingerprint"`
}

type idlFile struct {
	ContractName    string                                          `json:"contract_name"`
	ContractVersion string                                          `json:"contract_version"`
	IDLVersion      string                                          `json:"idl_version"`
	Instantiate     json.RawMessage                                 `json:"instantiate"`
	Execute         json.RawMessage                                 `json:"execute"`
	Query           json.RawMessage                                 `json:"query"`
	Migrate         json.RawMessage                                 `json:"migrate"`
	Sudo            json.RawMessage                                 `json:"sudo"`
	Responses       *orderedmap.OrderedMap[string, json.RawMessage] `json:"responses"`
}

// ParseIDL reads a combined schema file as written by cosmwasm-schema.
func ParseIDL(name string, data []byte) (*Source, error) {
	var f idlFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &SchemaError{Contract: name, Code: ErrCodeInvalid, Message: "malformed IDL document", Err: err}
	}
	src := &Source{
		Name:            name,
		ContractName:    f.ContractName,
		ContractVersion: f.ContractVersion,
		IDLVersion:      f.IDLVersion,
		Messages:        make(map[Kind]json.RawMessage),
		Responses:       f.Responses,
	}
	for kind, raw := range map[Kind]json.RawMessage{
		KindInstantiate: f.Instantiate,
		KindExecute:     f.Execute,
		KindQuery:       f.Query,
		KindMigrate:     f.Migrate,
		KindSudo:        f.Sudo,
	} {
		if present(raw) {
			src.Messages[kind] = raw
		}
	}
	if src.Responses == nil {
		src.Responses = orderedmap.New[string, json.RawMessage]()
	}
	return src, nil
}

// ReadSource reads a contract schema from path, which is either a combined
// IDL file or a directory. A directory is searched for a combined file
// first, then for split message files in raw/ or the directory itself.
func ReadSource(name, path string) (*Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &SchemaError{Contract: name, Path: path, Code: ErrCodeRead, Message: "cannot read schema location", Err: err}
	}
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &SchemaError{Contract: name, Path: path, Code: ErrCodeRead, Message: "cannot read schema file", Err: err}
		}
		src, err := ParseIDL(name, data)
		if err != nil {
			return nil, withPath(err, path)
		}
		src.Path = path
		return src, nil
	}

	files, err := jsonFiles(path)
	if err != nil {
		return nil, &SchemaError{Contract: name, Path: path, Code: ErrCodeRead, Message: "cannot list schema directory", Err: err}
	}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, &SchemaError{Contract: name, Path: file, Code: ErrCodeRead, Message: "cannot read schema file", Err: err}
		}
		if !isIDL(data) {
			continue
		}
		src, err := ParseIDL(name, data)
		if err != nil {
			return nil, withPath(err, file)
		}
		src.Path = file
		return src, nil
	}

	dir := path
	if st, err := os.Stat(filepath.Join(path, "raw")); err == nil && st.IsDir() {
		dir = filepath.Join(path, "raw")
		if files, err = jsonFiles(dir); err != nil {
			return nil, &SchemaError{Contract: name, Path: dir, Code: ErrCodeRead, Message: "cannot list schema directory", Err: err}
		}
	}
	return readSplit(name, dir, files)
}

func readSplit(name, dir string, files []string) (*Source, error) {
	src := &Source{
		Name:      name,
		Path:      dir,
		Messages:  make(map[Kind]json.RawMessage),
		Responses: orderedmap.New[string, json.RawMessage](),
	}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, &SchemaError{Contract: name, Path: file, Code: ErrCodeRead, Message: "cannot read schema file", Err: err}
		}
		base := strings.TrimSuffix(filepath.Base(file), ".json")
		if tag, ok := strings.CutPrefix(base, "response_to_"); ok {
			src.Responses.Set(tag, data)
			continue
		}
		// Older cosmwasm-schema layouts name the file <query>_response.json.
		// An explicit response_to_ file wins.
		if tag, ok := strings.CutSuffix(base, "_response"); ok && tag != "" {
			if _, seen := src.Responses.Get(tag); !seen {
				src.Responses.Set(tag, data)
			}
			continue
		}
		kind, ok := classify(base, data)
		if !ok {
			continue
		}
		if _, dup := src.Messages[kind]; dup {
			return nil, &SchemaError{Contract: name, Path: file, Code: ErrCodeConflict, Message: fmt.Sprintf("more than one %s document", kind)}
		}
		src.Messages[kind] = data
	}
	if len(src.Messages) == 0 {
		return nil, &SchemaError{Contract: name, Path: dir, Code: ErrCodeMissing, Message: "no message schema found"}
	}
	return src, nil
}

// classify maps a split file to its message kind by file name, falling back
// to the document title.
func classify(base string, data []byte) (Kind, bool) {
	for _, kind := range Kinds {
		prefix := kind.String()
		if base == prefix || base == prefix+"_msg" {
			return kind, true
		}
	}
	var head struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return 0, false
	}
	for _, kind := range Kinds {
		if head.Title == kind.DefaultTitle() {
			return kind, true
		}
	}
	return 0, false
}

// Ingest converts raw documents into a Contract. Any returned error is a
// *SchemaError naming the contract.
func Ingest(src *Source) (*Contract, error) {
	c, err := ingest(src)
	if err != nil {
		var se *SchemaError
		if errors.As(err, &se) {
			if se.Contract == "" {
				se.Contract = src.Name
			}
			return nil, se
		}
		return nil, &SchemaError{Contract: src.Name, Code: ErrCodeInvalid, Message: "ingest failed", Err: err}
	}
	return c, nil
}

func ingest(src *Source) (*Contract, error) {
	c := &Contract{
		Name:            src.Name,
		ContractName:    src.ContractName,
		ContractVersion: src.ContractVersion,
		IDLVersion:      src.IDLVersion,
		Source:          src.Path,
	}
	b := newBuilder()

	if src.IDLVersion != "" {
		if err := versioning.CheckIDL(src.IDLVersion); err != nil {
			return nil, &SchemaError{Code: ErrCodeIDL, Path: "idl_version", Message: err.Error(), Err: err}
		}
	}
	if src.ContractVersion != "" && !versioning.IsSemver(src.ContractVersion) {
		b.warn(WarnContractVersion, "contract_version", "contract_version %q is not semver", src.ContractVersion)
	}
	if len(src.Messages) == 0 {
		return nil, schemaErr(ErrCodeMissing, "", "no message schema found")
	}

	var identity []docIdentity

	for _, kind := range Kinds {
		raw, ok := src.Messages[kind]
		if !ok {
			continue
		}
		root, err := parseNode(raw)
		if err != nil {
			return nil, &SchemaError{Code: ErrCodeInvalid, Path: kind.String(), Message: "malformed schema document", Err: err}
		}
		shape, err := b.message(kind, root)
		if err != nil {
			return nil, err
		}
		validator, err := compile(src.Name, kind.String(), raw)
		if err != nil {
			return nil, err
		}
		fp, err := canonicalize.Fingerprint(raw)
		if err != nil {
			return nil, &SchemaError{Code: ErrCodeInvalid, Path: kind.String(), Message: "cannot canonicalize document", Err: err}
		}
		shape.Fingerprint = fp
		shape.Validator = validator
		c.Messages = append(c.Messages, shape)
		identity = append(identity, docIdentity{Kind: kind.String(), Fingerprint: fp})
	}

	if err := attachResponses(b, c, src, &identity); err != nil {
		return nil, err
	}

	fp, err := canonicalize.CanonicalHash(identity)
	if err != nil {
		return nil, &SchemaError{Code: ErrCodeInvalid, Message: "cannot fingerprint contract", Err: err}
	}
	c.Fingerprint = fp
	c.Definitions = b.defs
	c.Warnings = b.warnings
	return c, nil
}

// attachResponses links query variants to their response documents. A
// query variant without a response is reported as a warning.
func attachResponses(b *builder, c *Contract, src *Source, identity *[]docIdentity) error {
	query := c.Message(KindQuery)
	if src.Responses == nil {
		src.Responses = orderedmap.New[string, json.RawMessage]()
	}
	for pair := src.Responses.Oldest(); pair != nil; pair = pair.Next() {
		tag, raw := pair.Key, pair.Value
		if !present(raw) {
			continue
		}
		root, err := parseNode(raw)
		if err != nil {
			return &SchemaError{Code: ErrCodeInvalid, Path: "responses/" + tag, Message: "malformed response document", Err: err}
		}
		ref, err := b.response(tag, root)
		if err != nil {
			return err
		}
		if _, err := compile(src.Name, "response_to_"+tag, raw); err != nil {
			return err
		}
		fp, err := canonicalize.Fingerprint(raw)
		if err != nil {
			return &SchemaError{Code: ErrCodeInvalid, Path: "responses/" + tag, Message: "cannot canonicalize document", Err: err}
		}
		*identity = append(*identity, docIdentity{Kind: "response_to_" + tag, Fingerprint: fp})
		if query == nil {
			continue
		}
		if v, ok := query.Variant(tag); ok {
			v.Response = ref
		}
	}
	if query == nil {
		return nil
	}
	for _, v := range query.Variants {
		if v.Response == nil {
			b.warn(WarnMissingResponse, "query#/"+v.Tag, "query %s has no response schema", v.Tag)
		}
	}
	return nil
}

// compile checks a root document against draft-07 and returns the
// compiled validator.
func compile(contract, name string, raw []byte) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	url := fmt.Sprintf("https://cwgen.schemas.local/%s/%s.schema.json", contract, name)
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, &SchemaError{Code: ErrCodeInvalid, Path: name, Message: "schema load failed", Err: err}
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, &SchemaError{Code: ErrCodeInvalid, Path: name, Message: "schema compile failed", Err: err}
	}
	return compiled, nil
}

// Load reads and ingests the schema of one contract.
func Load(name, path string) (*Contract, error) {
	src, err := ReadSource(name, path)
	if err != nil {
		return nil, err
	}
	return Ingest(src)
}

func jsonFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type()&fs.ModeType != 0 || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func isIDL(data []byte) bool {
	var head struct {
		IDLVersion *string `json:"idl_version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return false
	}
	return head.IDLVersion != nil
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func withPath(err error, path string) error {
	var se *SchemaError
	if errors.As(err, &se) && se.Path == "" {
		se.Path = path
	}
	return err
}
