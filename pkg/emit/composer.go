package emit

import (
	"fmt"
	"strings"

	"github.com/permissionlessweb/bs-accounts/pkg/naming"
)

// composerFile emits the message composer (execute envelopes) and the query
// composer (smart query payloads).
func (g *generator) composerFile() (File, error) {
	f := newGoFile()
	f.use(RuntimeImport)

	if m := g.execute; m != nil {
		ident := g.name + "MessageComposer"
		union := g.typeName(m.Name)
		f.p("// %s builds %s envelopes for one %s contract instance.", ident, m.Name, g.c.Name)
		f.p("// Funds default to an empty list.")
		f.p("type %s struct {", ident)
		f.p("sender string")
		f.p("contractAddress string")
		f.p("}")
		f.line()
		f.p("// New%s binds a composer to a sender and a contract address.", ident)
		f.p("func New%s(sender, contractAddress string) *%s {", ident, ident)
		f.p("return &%s{sender: sender, contractAddress: contractAddress}", ident)
		f.p("}")
		f.line()
		for _, v := range m.Variants {
			method := naming.Exported(v.Tag)
			vident := union + method
			methodDoc(f, method, fmt.Sprintf("builds a %s envelope.", v.Tag), v.Doc)
			if len(v.Fields) == 0 {
				f.p("func (c *%s) %s(funds ...wasmbind.Coin) (*wasmbind.ExecuteEnvelope, error) {", ident, method)
				f.p("return wasmbind.NewExecute(c.sender, c.contractAddress, %s{Value: %s{}}, funds)", union, vident)
			} else {
				f.p("func (c *%s) %s(msg %s, funds ...wasmbind.Coin) (*wasmbind.ExecuteEnvelope, error) {", ident, method, vident)
				f.p("return wasmbind.NewExecute(c.sender, c.contractAddress, %s{Value: msg}, funds)", union)
			}
			f.p("}")
			f.line()
		}
	}

	if m := g.query; m != nil {
		ident := g.name + "QueryComposer"
		union := g.typeName(m.Name)
		f.p("// %s builds smart queries for one %s contract instance.", ident, g.c.Name)
		f.p("type %s struct {", ident)
		f.p("contractAddress string")
		f.p("}")
		f.line()
		f.p("// New%s binds a query composer to a contract address.", ident)
		f.p("func New%s(contractAddress string) *%s {", ident, ident)
		f.p("return &%s{contractAddress: contractAddress}", ident)
		f.p("}")
		f.line()
		for _, v := range m.Variants {
			method := naming.Exported(v.Tag)
			vident := union + method
			methodDoc(f, method, fmt.Sprintf("builds a %s query.", v.Tag), v.Doc)
			if len(v.Fields) == 0 {
				f.p("func (c *%s) %s() (*wasmbind.SmartQuery, error) {", ident, method)
				f.p("return wasmbind.NewSmartQuery(c.contractAddress, %s{Value: %s{}})", union, vident)
			} else {
				f.p("func (c *%s) %s(msg %s) (*wasmbind.SmartQuery, error) {", ident, method, vident)
				f.p("return wasmbind.NewSmartQuery(c.contractAddress, %s{Value: msg})", union)
			}
			f.p("}")
			f.line()
		}
	}
	return g.render(ComposerFile, f, false)
}

// methodDoc writes "<Method> <summary>" followed by the variant doc.
func methodDoc(f *goFile, method, summary, doc string) {
	f.p("// %s %s", method, summary)
	if doc = strings.TrimSpace(doc); doc != "" {
		f.p("//")
		f.comment(doc)
	}
}
