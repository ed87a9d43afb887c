package evaluator

import "sift/internal/models"

// Persona names. These are stable identifiers: they key evaluations in the
// database and appear in API responses.
const (
	GenAINews         = "GENAI_NEWS"
	ProductIdeas      = "PRODUCT_IDEAS"
	FinancialAnalysis = "FINANCIAL_ANALYSIS"
)

// DetailField maps an optional field parsed from an evaluation line to the
// label it renders under in the digest.
type DetailField struct {
	Key   string
	Label string
}

// Persona bundles everything that defines one evaluation perspective: its
// anchor text for the semantic gate, its batch prompt, the preference key
// that toggles it, and how its extra detail fields are rendered.
type Persona struct {
	Name         string
	Title        string
	Preference   string
	Anchor       string
	Template     string
	DetailFields []DetailField
}

// Personas returns the persona registry in priority order. The order is
// load-bearing: it breaks score ties during exclusive assignment and fixes
// the digest section order.
func Personas() []Persona {
	return []Persona{
		{
			Name:       GenAINews,
			Title:      "GenAI Tech News",
			Preference: models.PrefPersonaGenAI,
			Anchor: "Large Language Models, LLM, GPT, Claude, Llama, Gemini, AI, machine learning, " +
				"deep learning, neural networks, transformers, AI agents, RAG, embeddings, " +
				"fine-tuning, training, inference, CUDA, GPU, PyTorch, TensorFlow, " +
				"AI research, model releases, open source AI, prompt engineering.",
			Template: genAITemplate,
			DetailFields: []DetailField{
				{Key: "technical_details", Label: "Technical Details"},
			},
		},
		{
			Name:       ProductIdeas,
			Title:      "Product Opportunities",
			Preference: models.PrefPersonaProduct,
			Anchor: "Startup, product launch, SaaS, app, software, developer tools, " +
				"market opportunity, business idea, MVP, growth, entrepreneurship, " +
				"indie hacker, bootstrapping, API, platform, marketplace.",
			Template: productTemplate,
		},
		{
			Name:       FinancialAnalysis,
			Title:      "Financial Analysis",
			Preference: models.PrefPersonaFinance,
			Anchor: "Revenue, earnings, funding, Series A, venture capital, IPO, " +
				"stock, valuation, investment, financial report, quarterly results, " +
				"market cap, acquisition, merger, tech stocks.",
			Template: financeTemplate,
			DetailFields: []DetailField{
				{Key: "key_metrics", Label: "Metrics"},
			},
		},
	}
}

// Lookup finds a persona by name.
func Lookup(name string) (Persona, bool) {
	for _, p := range Personas() {
		if p.Name == name {
			return p, true
		}
	}
	return Persona{}, false
}

// Batch prompt templates. The single %s receives the item lines, one
// PromptLine per item separated by blank lines.
const genAITemplate = `You are an expert AI Editor.
Analyze the following list of content items.

GUIDELINES:
- Select items relevant to a Generative AI Engineer.
- STRICTLY DISCARD generic non-technical news.
- IGNORE duplicates.

INPUT ITEMS:
%s

OUTPUT FORMAT:
For EACH item, output a SINGLE LINE in this exact format:
ID: <UUID> | SCORE: <0-10> | DECISION: <KEEP/DISCARD> | INSIGHT: <4 sentences explaining the core value and key takeaways. Be specific and clear to help a user decide if they should read the full article.>

Output ONLY these lines.`

const productTemplate = `You are a Product Scout. Analyze the items.
Look for: Startup ideas, unaddressed problems, or market gaps.

INPUT ITEMS:
%s

OUTPUT FORMAT:
For EACH item, output a SINGLE LINE in this exact format:
ID: <UUID> | SCORE: <0-10> | DECISION: <KEEP/DISCARD> | INSIGHT: <4 sentences describing the core problem or opportunity. Be specific and clear to help a user decide if they should read the full article.>

Output ONLY these lines.`

const financeTemplate = `You are a Financial Analyst. Analyze the items.
Look for: Revenue, Funding, IPOs, Market Data.

INPUT ITEMS:
%s

OUTPUT FORMAT:
For EACH item, output a SINGLE LINE in this exact format:
ID: <UUID> | SCORE: <0-10> | DECISION: <KEEP/DISCARD> | INSIGHT: <4 sentences summarizing the key financial numbers and status. Be specific and clear to help a user decide if they should read the full article.>

Output ONLY these lines.`
