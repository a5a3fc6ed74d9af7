package similarity

import (
	"context"
	"hash/fnv"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"structgraph/internal/logging"
)

func languageFor(lang string) *sitter.Language {
	switch lang {
	case "go":
		return golang.GetLanguage()
	case "python":
		return python.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	case "typescript":
		return typescript.GetLanguage()
	default:
		return nil
	}
}

// NodeKindSequence parses src with the language's tree-sitter grammar and
// returns the depth-first sequence of node type names — the AST stage's
// structural fingerprint (spec §4.4). Returns nil when the language has no
// registered grammar or the parse fails, so callers fall back gracefully.
func NodeKindSequence(lang, src string) []string {
	grammar := languageFor(lang)
	if grammar == nil {
		return nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(src))
	if err != nil || tree == nil {
		logging.SimilarityDebug("tree-sitter parse failed for lang=%s: %v", lang, err)
		return nil
	}
	defer tree.Close()

	var seq []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		seq = append(seq, n.Type())
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())
	return seq
}

// StructureHash derives the stable integer used as Construct.StructureHash:
// a hash of the node-kind sequence when available, else a hash of the
// normalized text plus a logarithmic size bucket and nesting-depth
// estimate, matching spec §4.4's non-AST fallback description.
func StructureHash(lang, normalizedText string) uint64 {
	seq := NodeKindSequence(lang, normalizedText)
	h := fnv.New64a()
	if len(seq) > 0 {
		for _, k := range seq {
			h.Write([]byte(k))
			h.Write([]byte{0})
		}
		return h.Sum64()
	}

	h.Write([]byte(normalizedText))
	bucket := sizeBucket(len(normalizedText))
	depth := nestingDepthEstimate(normalizedText)
	h.Write([]byte{byte(bucket), byte(depth)})
	return h.Sum64()
}

func sizeBucket(n int) int {
	bucket := 0
	for n > 1 {
		n /= 2
		bucket++
	}
	return bucket
}

func nestingDepthEstimate(text string) int {
	depth, max := 0, 0
	for _, r := range text {
		switch r {
		case '{', '(', '[':
			depth++
			if depth > max {
				max = depth
			}
		case '}', ')', ']':
			if depth > 0 {
				depth--
			}
		}
	}
	return max
}
