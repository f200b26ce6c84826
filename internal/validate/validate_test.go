package validate

import (
	"context"
	"strings"
	"testing"

	"github.com/jorge-barreto/appgen/internal/artifact"
)

const validPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Home</title>
<link rel="stylesheet" href="styles.css">
</head>
<body>
<nav><ul><li><a href="index.html">Home</a><li><a href="about.html">About</a></ul></nav>
<main class="hero"><p>One<p>Two<br><img src="logo.png" alt=""></main>
<script src="script.js"></script>
</body>
</html>
`

func hasProblem(problems []string, substr string) bool {
	for _, p := range problems {
		if strings.Contains(p, substr) {
			return true
		}
	}
	return false
}

func TestCheckMarkup_Valid(t *testing.T) {
	if problems := Check(context.Background(), artifact.KindMarkup, validPage); len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
}

func TestCheckMarkup_MissingSkeleton(t *testing.T) {
	problems := Check(context.Background(), artifact.KindMarkup, "<div>hi</div>")
	for _, want := range []string{"DOCTYPE", "<html>", "<head>", "<body>"} {
		if !hasProblem(problems, want) {
			t.Fatalf("expected problem mentioning %s, got %v", want, problems)
		}
	}
}

func TestCheckMarkup_Unbalanced(t *testing.T) {
	doc := strings.Replace(validPage, "<main class=\"hero\">", "<main class=\"hero\"><section><span>", 1)
	problems := Check(context.Background(), artifact.KindMarkup, doc)
	if !hasProblem(problems, "<span> not closed before </main>") {
		t.Fatalf("got %v", problems)
	}
	if !hasProblem(problems, "<section> not closed") {
		t.Fatalf("got %v", problems)
	}
}

func TestCheckMarkup_StrayEndTag(t *testing.T) {
	doc := strings.Replace(validPage, "</main>", "</main></article>", 1)
	problems := Check(context.Background(), artifact.KindMarkup, doc)
	if !hasProblem(problems, "stray </article>") {
		t.Fatalf("got %v", problems)
	}
}

func TestCheckMarkup_Empty(t *testing.T) {
	if problems := Check(context.Background(), artifact.KindMarkup, "  \n"); len(problems) == 0 {
		t.Fatal("expected empty document to be invalid")
	}
}

func TestBalanceMarkup_PreservesValidInput(t *testing.T) {
	if got := balanceMarkup(validPage); got != validPage {
		t.Fatalf("balanced output differs:\n%s", got)
	}
}

func TestVet_RepairsTruncatedPage(t *testing.T) {
	truncated := "<!DOCTYPE html>\n<html><head><title>x</title></head><body><div class=\"card\"><span>cut"
	out, ok := Vet(context.Background(), artifact.KindMarkup, truncated)
	if !ok {
		t.Fatalf("expected repair to succeed: %v", out.Problems)
	}
	if out.Status != artifact.StatusRepaired {
		t.Fatalf("status = %s", out.Status)
	}
	if !strings.HasSuffix(out.Content, "</span></div></body></html>") {
		t.Fatalf("content = %q", out.Content)
	}
	if len(out.Problems) == 0 {
		t.Fatal("expected original problems to be reported")
	}
}

func TestVet_RebuildsSkeleton(t *testing.T) {
	frag := "<title>Shop</title>\n<h1>Welcome</h1>\n<p>Deals</div>"
	out, ok := Vet(context.Background(), artifact.KindMarkup, frag)
	if !ok {
		t.Fatalf("expected repair to succeed: %v", out.Problems)
	}
	if !strings.HasPrefix(out.Content, "<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n<title>Shop</title>\n</head>\n<body>\n<h1>Welcome</h1>") {
		t.Fatalf("content = %q", out.Content)
	}
	if strings.Contains(out.Content, "</div>") {
		t.Fatal("stray </div> should have been dropped")
	}
}

func TestVet_ValidUnchanged(t *testing.T) {
	out, ok := Vet(context.Background(), artifact.KindMarkup, validPage)
	if !ok || out.Status != artifact.StatusValid || out.Content != validPage {
		t.Fatalf("got %+v, %v", out, ok)
	}
}

func TestCheckStyle(t *testing.T) {
	ctx := context.Background()
	valid := "body { margin: 0; }\n.hero { color: #333; padding: 1rem; }\n@media (max-width: 600px) {\n  .hero { padding: 0; }\n}\n"
	if problems := Check(ctx, artifact.KindStyle, valid); len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
	if problems := Check(ctx, artifact.KindStyle, "/* nothing here */\n"); !hasProblem(problems, "no rule sets") {
		t.Fatalf("got %v", problems)
	}
	if problems := Check(ctx, artifact.KindStyle, ""); len(problems) == 0 {
		t.Fatal("expected empty stylesheet to be invalid")
	}
}

func TestVet_StyleMissingBrace(t *testing.T) {
	src := ".hero { color: red;\n"
	if problems := Check(context.Background(), artifact.KindStyle, src); len(problems) == 0 {
		t.Fatal("expected unclosed rule to be invalid")
	}
	out, ok := Vet(context.Background(), artifact.KindStyle, src)
	if !ok || out.Status != artifact.StatusRepaired {
		t.Fatalf("got %+v, %v", out, ok)
	}
}

func TestVet_StyleStrayCloser(t *testing.T) {
	out, ok := Vet(context.Background(), artifact.KindStyle, "body { margin: 0; }\n}\n")
	if !ok {
		t.Fatalf("expected repair: %v", out.Problems)
	}
	if strings.Count(out.Content, "}") != 1 {
		t.Fatalf("content = %q", out.Content)
	}
}

func TestCheckBehavior(t *testing.T) {
	ctx := context.Background()
	valid := `document.addEventListener("DOMContentLoaded", () => {
  const menu = document.getElementById("menu");
  if (menu) {
    menu.classList.toggle("open");
  }
});
`
	if problems := Check(ctx, artifact.KindBehavior, valid); len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
	if problems := Check(ctx, artifact.KindBehavior, "// only a comment\n"); !hasProblem(problems, "no statements") {
		t.Fatalf("got %v", problems)
	}
}

func TestVet_BehaviorUnclosedFunction(t *testing.T) {
	src := "function init() {\n  console.log(\"ready\");\n"
	out, ok := Vet(context.Background(), artifact.KindBehavior, src)
	if !ok || out.Status != artifact.StatusRepaired {
		t.Fatalf("got %+v, %v", out, ok)
	}
	if !strings.HasSuffix(out.Content, "\n}\n") {
		t.Fatalf("content = %q", out.Content)
	}
}

func TestVet_BehaviorUnrepairable(t *testing.T) {
	out, ok := Vet(context.Background(), artifact.KindBehavior, "this is not javascript at all !!")
	if ok {
		t.Fatalf("expected failure, got %+v", out)
	}
	if len(out.Problems) == 0 {
		t.Fatal("expected remaining problems")
	}
}

func TestBalanceDelimiters(t *testing.T) {
	cases := []struct{ in, want string }{
		{"a { b ( c }", "a { b ( c )}"},
		{"x ] y", "x  y"},
		{`s = "a { b"; {`, "s = \"a { b\"; {\n}\n"},
		{"/* { */ }", "/* { */ "},
		{"f('unterminated\n)", "f('unterminated'\n)"},
	}
	for _, c := range cases {
		if got := balanceDelimiters(c.in, jsSyntax); got != c.want {
			t.Fatalf("balanceDelimiters(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDelimiterProblems(t *testing.T) {
	problems := delimiterProblems("a {\n b ) \n", cssSyntax)
	if !hasProblem(problems, "unexpected ')' on line 2") || !hasProblem(problems, "missing '}'") {
		t.Fatalf("got %v", problems)
	}
}

func TestFallback_AlwaysValid(t *testing.T) {
	ctx := context.Background()
	specs := []artifact.Spec{
		{Name: "pages/about-us.html", Kind: artifact.KindMarkup, Purpose: "About <us> & team"},
		{Name: "index.html", Kind: artifact.KindMarkup},
		{Name: "styles.css", Kind: artifact.KindStyle},
		{Name: "script.js", Kind: artifact.KindBehavior},
	}
	for _, s := range specs {
		content := Fallback(s)
		if problems := Check(ctx, s.Kind, content); len(problems) != 0 {
			t.Fatalf("%s: fallback invalid: %v", s.Name, problems)
		}
	}
	about := Fallback(specs[0])
	if !strings.Contains(about, "<title>about-us</title>") || !strings.Contains(about, "About &lt;us&gt; &amp; team") {
		t.Fatalf("unexpected fallback:\n%s", about)
	}
	if strings.Contains(about, "href=") || strings.Contains(about, "src=") {
		t.Fatal("fallback must not reference other artifacts")
	}
}

func TestStrip(t *testing.T) {
	page := "Here is your page:\n```html\n<!DOCTYPE html>\n<html><head></head><body></body></html>\n```\nHope this helps!"
	if got := Strip(artifact.KindMarkup, page); got != "<!DOCTYPE html>\n<html><head></head><body></body></html>\n" {
		t.Fatalf("markup: %q", got)
	}
	unfenced := "Sure, here is the page. <!DOCTYPE html><html></html> Enjoy."
	if got := Strip(artifact.KindMarkup, unfenced); got != "<!DOCTYPE html><html></html>\n" {
		t.Fatalf("unfenced markup: %q", got)
	}
	css := "Here is the stylesheet:\n\n.a { color: red; }\n\nLet me know if you want changes."
	if got := Strip(artifact.KindStyle, css); got != ".a { color: red; }\n" {
		t.Fatalf("style: %q", got)
	}
	js := "// Toggle the menu.\nconst a = 1;\n"
	if got := Strip(artifact.KindBehavior, js); got != js {
		t.Fatalf("behavior: %q", got)
	}
}

func TestScanReferences(t *testing.T) {
	arts := []artifact.Artifact{
		{Name: "index.html", Kind: artifact.KindMarkup, Content: `<!DOCTYPE html><html><head>
<link rel="stylesheet" href="styles.css"><link rel="stylesheet" href="https://cdn.example.com/x.css">
</head><body>
<a href="about.html">About</a> <a href="#top">Top</a> <a href="mailto:hi@example.com">Mail</a>
<a href="pages/contact.html?x=1">Contact</a>
<div id="menu" class="hero ghost open"></div>
<script src="script.js"></script></body></html>`},
		{Name: "pages/contact.html", Kind: artifact.KindMarkup, Content: `<a href="../index.html">Home</a><a href="/styles.css">css</a>`},
		{Name: "styles.css", Kind: artifact.KindStyle, Content: ".hero { color: red; }\nnav .menu-item:hover { color: blue; }\n"},
		{Name: "script.js", Kind: artifact.KindBehavior, Content: `document.getElementById("menu").classList.toggle("open");
document.querySelector("#cart .item");`},
	}
	got := ScanReferences(context.Background(), arts)
	want := []Finding{
		{Artifact: "index.html", Kind: MissingTarget, Ref: "about.html"},
		{Artifact: "index.html", Kind: UndefinedClass, Ref: "ghost"},
		{Artifact: "script.js", Kind: MissingID, Ref: "cart"},
	}
	if len(got) != len(want) {
		t.Fatalf("findings = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("finding %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if !strings.Contains(got[0].String(), "about.html") {
		t.Fatalf("String() = %q", got[0].String())
	}
}

func TestResolveLocal(t *testing.T) {
	cases := []struct {
		from, ref, want string
		ok              bool
	}{
		{"index.html", "about.html", "about.html", true},
		{"pages/a.html", "../styles.css", "styles.css", true},
		{"pages/a.html", "b.html#x", "pages/b.html", true},
		{"pages/a.html", "/js/app.js", "js/app.js", true},
		{"index.html", "https://example.com", "", false},
		{"index.html", "#top", "", false},
		{"index.html", "//cdn.example.com/a.js", "", false},
		{"index.html", "../outside.html", "", false},
		{"index.html", "docs/", "", false},
	}
	for _, c := range cases {
		got, ok := resolveLocal(c.from, c.ref)
		if got != c.want || ok != c.ok {
			t.Fatalf("resolveLocal(%q, %q) = %q, %v; want %q, %v", c.from, c.ref, got, ok, c.want, c.ok)
		}
	}
}

func TestStrip_ByKind(t *testing.T) {
	cases := []struct {
		name string
		kind artifact.Kind
		in   string
		want string
	}{
		{"fenced style with prose", artifact.KindStyle,
			"Here is the stylesheet:\n```css\n.hero { color: red; }\n```\nHope this helps!",
			".hero { color: red; }\n"},
		{"unfenced script with prose", artifact.KindBehavior,
			"Sure, here is the script you asked for.\nconsole.log(1);\nLet me know if you need anything else.",
			"console.log(1);\n"},
		{"markup preamble and postamble", artifact.KindMarkup,
			"The page follows.\n<!DOCTYPE html><html><body></body></html>\nEnjoy the page",
			"<!DOCTYPE html><html><body></body></html>\n"},
		{"comment kept", artifact.KindStyle,
			"/* Shared styles. */\nbody { margin: 0; }",
			"/* Shared styles. */\nbody { margin: 0; }\n"},
		{"empty", artifact.KindBehavior, "  \n", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Strip(c.kind, c.in); got != c.want {
				t.Fatalf("Strip() = %q, want %q", got, c.want)
			}
		})
	}
}
