package emit

import (
	"fmt"

	"github.com/permissionlessweb/bs-accounts/pkg/naming"
	"github.com/permissionlessweb/bs-accounts/pkg/schema"
)

// clientFile emits a query client over wasmbind.Querier and an execute
// client over wasmbind.Executor.
func (g *generator) clientFile() (File, error) {
	f := newGoFile()
	f.use(RuntimeImport)
	f.use("context")

	queryClient := g.name + "QueryClient"
	if m := g.query; m != nil {
		union := g.typeName(m.Name)
		f.p("// %s runs smart queries against one %s contract instance.", queryClient, g.c.Name)
		f.p("type %s struct {", queryClient)
		f.p("querier wasmbind.Querier")
		f.p("contractAddress string")
		f.p("}")
		f.line()
		f.p("// New%s returns a query client for contractAddress.", queryClient)
		f.p("func New%s(querier wasmbind.Querier, contractAddress string) *%s {", queryClient, queryClient)
		f.p("return &%s{querier: querier, contractAddress: contractAddress}", queryClient)
		f.p("}")
		f.line()
		for _, v := range m.Variants {
			method := naming.Exported(v.Tag)
			vident := union + method
			resp, err := g.responseType(f, v, vident)
			if err != nil {
				return File{}, err
			}
			methodDoc(f, method, fmt.Sprintf("runs the %s query.", v.Tag), v.Doc)
			arg, value := "", fmt.Sprintf("%s{Value: %s{}}", union, vident)
			if len(v.Fields) > 0 {
				arg, value = ", msg "+vident, union+"{Value: msg}"
			}
			f.p("func (c *%s) %s(ctx context.Context%s) (*%s, error) {", queryClient, method, arg, resp)
			f.p("return wasmbind.Query[%s](ctx, c.querier, c.contractAddress, %s)", resp, value)
			f.p("}")
			f.line()
		}
	}

	if m := g.execute; m != nil {
		ident := g.name + "Client"
		union := g.typeName(m.Name)
		f.p("// %s executes messages on one %s contract instance.", ident, g.c.Name)
		f.p("type %s struct {", ident)
		if g.query != nil {
			f.p("*%s", queryClient)
		}
		f.p("executor wasmbind.Executor")
		f.p("sender string")
		f.p("contractAddress string")
		f.p("}")
		f.line()
		if g.query != nil {
			f.p("// New%s returns a client that queries through querier and submits", ident)
			f.p("// execute messages signed by sender through executor.")
			f.p("func New%s(querier wasmbind.Querier, executor wasmbind.Executor, sender, contractAddress string) *%s {", ident, ident)
			f.p("return &%s{", ident)
			f.p("%s: New%s(querier, contractAddress),", queryClient, queryClient)
		} else {
			f.p("// New%s returns a client that submits execute messages signed by", ident)
			f.p("// sender through executor.")
			f.p("func New%s(executor wasmbind.Executor, sender, contractAddress string) *%s {", ident, ident)
			f.p("return &%s{", ident)
		}
		f.p("executor: executor,")
		f.p("sender: sender,")
		f.p("contractAddress: contractAddress,")
		f.p("}")
		f.p("}")
		f.line()
		for _, v := range m.Variants {
			method := naming.Exported(v.Tag)
			vident := union + method
			methodDoc(f, method, fmt.Sprintf("submits a %s message.", v.Tag), v.Doc)
			arg, value := "", fmt.Sprintf("%s{Value: %s{}}", union, vident)
			if len(v.Fields) > 0 {
				arg, value = ", msg "+vident, union+"{Value: msg}"
			}
			f.p("func (c *%s) %s(ctx context.Context%s, funds ...wasmbind.Coin) (*wasmbind.ExecuteResult, error) {", ident, method, arg)
			f.p("env, err := wasmbind.NewExecute(c.sender, c.contractAddress, %s, funds)", value)
			f.p("if err != nil {")
			f.p("return nil, err")
			f.p("}")
			f.p("return c.executor.Execute(ctx, &env.Value)")
			f.p("}")
			f.line()
		}
	}
	return g.render(ClientFile, f, false)
}

// responseType renders the declared response of a query variant. Variants
// without a response schema decode into raw JSON.
func (g *generator) responseType(f *goFile, v schema.Variant, decl string) (string, error) {
	if v.Response == nil {
		f.use("encoding/json")
		return "json.RawMessage", nil
	}
	ref := *v.Response
	ref.Nullable = false
	return g.goType(f, ref, decl)
}
