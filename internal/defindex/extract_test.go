package defindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractOne(t *testing.T, l lang, path, code string) *fileExtraction {
	t.Helper()
	g := newGrammarSet()
	defer g.close()
	fe, err := extractFile(g, l, path, []byte(code))
	require.NoError(t, err)
	require.NotNil(t, fe)
	require.False(t, fe.parseFailed)
	return fe
}

func findDef(fe *fileExtraction, name string, kind Kind) (DefinitionEntry, int, bool) {
	for i, d := range fe.definitions {
		if d.Name == name && d.Kind == kind {
			return d, i, true
		}
	}
	return DefinitionEntry{}, -1, false
}

func TestExtractCSharpClassAndMembers(t *testing.T) {
	code := `namespace App {
    public class Calculator : BaseCalculator
    {
        private Logger logger;

        public Calculator()
        {
            logger.Log("created");
        }

        public int Add(int a, int b)
        {
            return a + b;
        }
    }
}`
	fe := extractOne(t, langCSharp, "Calculator.cs", code)

	cls, _, ok := findDef(fe, "Calculator", KindClass)
	require.True(t, ok)
	assert.Equal(t, []string{"BaseCalculator"}, cls.BaseTypes)

	_, _, ok = findDef(fe, "Add", KindMethod)
	assert.True(t, ok)

	ctor, ctorIdx, ok := findDef(fe, "Calculator", KindConstructor)
	require.True(t, ok)
	assert.True(t, ctor.HasBody)

	calls, ok := fe.callsByDef[ctorIdx]
	require.True(t, ok)
	require.Len(t, calls, 1)
	assert.Equal(t, "Log", calls[0].Callee)
	assert.Equal(t, "Logger", calls[0].ReceiverType)
}

func TestExtractCSharpFieldTypeMapFeedsReceiver(t *testing.T) {
	code := `public class Service
{
    private Repository repo;

    public void Save()
    {
        repo.Insert();
    }
}`
	fe := extractOne(t, langCSharp, "Service.cs", code)
	_, idx, ok := findDef(fe, "Save", KindMethod)
	require.True(t, ok)

	calls := fe.callsByDef[idx]
	require.Len(t, calls, 1)
	assert.Equal(t, "Insert", calls[0].Callee)
	assert.Equal(t, "Repository", calls[0].ReceiverType)
}

func TestExtractCSharpConstructorCallSite(t *testing.T) {
	code := `public class Factory
{
    public object Make()
    {
        return new Widget();
    }
}`
	fe := extractOne(t, langCSharp, "Factory.cs", code)
	_, idx, ok := findDef(fe, "Make", KindMethod)
	require.True(t, ok)

	calls := fe.callsByDef[idx]
	require.Len(t, calls, 1)
	assert.Equal(t, "Widget", calls[0].Callee)
	assert.Equal(t, "Widget", calls[0].ReceiverType)
}

func TestExtractTypeScriptClassConstructorParameterProperty(t *testing.T) {
	code := `class WidgetService {
  constructor(private repo: WidgetRepository) {}

  save() {
    this.repo.insert();
  }
}`
	fe := extractOne(t, langTypeScript, "widget.ts", code)

	_, idx, ok := findDef(fe, "save", KindMethod)
	require.True(t, ok)

	calls := fe.callsByDef[idx]
	require.Len(t, calls, 1)
	assert.Equal(t, "insert", calls[0].Callee)
	assert.Equal(t, "WidgetRepository", calls[0].ReceiverType)
}

func TestExtractTypeScriptInjectResolvesFieldType(t *testing.T) {
	code := `class Controller {
  private svc = inject(WidgetService);

  handle() {
    this.svc.save();
  }
}`
	fe := extractOne(t, langTypeScript, "controller.ts", code)
	_, idx, ok := findDef(fe, "handle", KindMethod)
	require.True(t, ok)

	calls := fe.callsByDef[idx]
	require.Len(t, calls, 1)
	assert.Equal(t, "save", calls[0].Callee)
	assert.Equal(t, "WidgetService", calls[0].ReceiverType)
}

func TestExtractTypeScriptUnresolvedIdentifierPreservesName(t *testing.T) {
	code := `class Controller {
  handle(helper) {
    helper.run();
  }
}`
	fe := extractOne(t, langTypeScript, "controller.ts", code)
	_, idx, ok := findDef(fe, "handle", KindMethod)
	require.True(t, ok)

	calls := fe.callsByDef[idx]
	require.Len(t, calls, 1)
	assert.Equal(t, "run", calls[0].Callee)
	assert.Equal(t, "helper", calls[0].ReceiverType)
}

func TestExtractTypeScriptLocalVarNewExpression(t *testing.T) {
	code := `class Controller {
  handle() {
    let svc = new WidgetService();
    svc.save();
  }
}`
	fe := extractOne(t, langTypeScript, "controller.ts", code)
	_, idx, ok := findDef(fe, "handle", KindMethod)
	require.True(t, ok)

	calls := fe.callsByDef[idx]
	require.Len(t, calls, 2)
	assert.Equal(t, "WidgetService", calls[0].ReceiverType)
	assert.Equal(t, "save", calls[1].Callee)
	assert.Equal(t, "WidgetService", calls[1].ReceiverType)
}

func TestExtractTypeScriptSuperResolvesToFirstBaseType(t *testing.T) {
	code := `class Base {}
class Derived extends Base {
  handle() {
    super.setup();
  }
}`
	fe := extractOne(t, langTypeScript, "controller.ts", code)
	_, idx, ok := findDef(fe, "handle", KindMethod)
	require.True(t, ok)

	calls := fe.callsByDef[idx]
	require.Len(t, calls, 1)
	assert.Equal(t, "setup", calls[0].Callee)
	assert.Equal(t, "Base", calls[0].ReceiverType)
}

func TestExtractTSXUsesReactGrammar(t *testing.T) {
	code := `class Widget {
  render() {
    this.draw();
  }
}`
	fe := extractOne(t, langTSX, "widget.tsx", code)
	_, _, ok := findDef(fe, "render", KindMethod)
	assert.True(t, ok)
}

func TestExtractUnsupportedLanguageReturnsNil(t *testing.T) {
	g := newGrammarSet()
	defer g.close()
	fe, err := extractFile(g, langNone, "unknown.txt", []byte("whatever"))
	require.NoError(t, err)
	assert.Nil(t, fe)
}
