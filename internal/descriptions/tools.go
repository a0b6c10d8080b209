package descriptions

// Tool names
const (
	GrantGet              = "grant_get"
	GrantSave             = "grant_save"
	GrantFillWeb          = "grant_fill_web"
	GrantExportPDF        = "grant_export_pdf"
	GrantPDFFields        = "grant_pdf_fields"
	GrantExtractQuestions = "grant_extract_questions"
	GrantGenerateDrafts   = "grant_generate_drafts"
	ProfileGet            = "profile_get"
	ProfileSave           = "profile_save"
	GrantServerInfo       = "grant_server_info"
)

// Tool descriptions with practical examples and workflows
const (
	GrantGetDescription = `Load a grant application record with its questions and current answers.

**When to use:** Before reviewing or editing answers, or to check a grant's status (draft, ready, filled, submitted).

**Examples:**
• "Show me the questions of grant 3f2a..."
• "Which answers of the Community Trees grant still need manual input?"

**Best practices:** Look at needs_manual_input on each question after drafting; those answers must be written by a person.`

	GrantSaveDescription = `Create or update a grant application record.

**When to use:** To register a new grant (name, grant_url, optional portal_url), to edit answers, or to mark questions reviewed.

**Examples:**
• Register a grant: {"grant_id":"trees-2025","grant_name":"Community Trees Fund","grant_url":"https://funder.org/apply.pdf","status":"draft","responses":[]}
• Correct an answer: load with grant_get, change the answer, save the whole record back.

**Best practices:** multi_choice answers are JSON arrays; every other answer is a string. Single and multi choice questions need options.`

	GrantFillWebDescription = `Fill the grant's online application form with the stored answers.

**When to use:** After answers are drafted and reviewed, to type them into the funder's portal.

**How it works:** Opens portal_url (or grant_url), matches each question to the best form control by label, name, placeholder and semantic category, writes the answer, then follows Next/Continue buttons page by page. It never clicks Submit.

**Examples:**
• "Fill the Community Trees application"
• "Fill grant trees-2025 at https://portal.funder.org/apply/123, at most 5 pages"

**Result:** fieldsFilled, fieldsSkipped, the question-to-control mappings with confidence, and why each skipped question was skipped.`

	GrantExportPDFDescription = `Write the grant's answers into its original fillable PDF and return a download link.

**When to use:** The funder distributes the application as a PDF form.

**Result:** filled=true with export_file_key and a one-hour download URL, or filled=false when the source is not a PDF or has no fillable fields.`

	GrantPDFFieldsDescription = `List the AcroForm fields of a PDF in the data directory: name, type, options, current value, max length.

**When to use:** To check whether a PDF is fillable before exporting, or to debug why a question did not land in a field.`

	GrantExtractQuestionsDescription = `Extract the application questions of a grant from its source document or web page.

**When to use:** Right after registering a grant.

**How it works:** Reads the stored source file (PDF, DOCX or HTML), or downloads grant_url when it points at a PDF/DOCX, or walks the web form page by page. The text goes to the language model in batches; questions are validated, de-duplicated and stored with empty answers.

**Best practices:** Review the extracted list with grant_get; replace it with grant_save if the model missed something.`

	GrantGenerateDraftsDescription = `Draft answers for every question of a grant from the organization profile.

**When to use:** After questions are extracted and the profile is filled in with profile_save.

**Result:** The grant moves to status ready. Questions the profile cannot answer (EIN, budgets, dates that are not stated) are left empty with needs_manual_input=true rather than invented.`

	ProfileGetDescription = `Load the organization profile used for drafting: legal name, mission, address and free-form sections.`

	ProfileSaveDescription = `Create or update the organization profile used for drafting.

**Examples:**
• {"legal_name":"Acme Trees","mission_short":"We plant urban trees","extra_sections":[{"id":"history","title":"History","content":"Founded in 2009..."}]}

**Best practices:** Put facts the funders ask for (EIN, budget, staff size) in extra sections so drafts can use them.`

	GrantServerInfoDescription = `Get server information: version, configured stores and surface, matching thresholds, page ceiling, and the available tools.`
)

// ToolDescriptions maps tool names to their comprehensive descriptions
var ToolDescriptions = map[string]string{
	GrantGet:              GrantGetDescription,
	GrantSave:             GrantSaveDescription,
	GrantFillWeb:          GrantFillWebDescription,
	GrantExportPDF:        GrantExportPDFDescription,
	GrantPDFFields:        GrantPDFFieldsDescription,
	GrantExtractQuestions: GrantExtractQuestionsDescription,
	GrantGenerateDrafts:   GrantGenerateDraftsDescription,
	ProfileGet:            ProfileGetDescription,
	ProfileSave:           ProfileSaveDescription,
	GrantServerInfo:       GrantServerInfoDescription,
}

// toolSummaries are one-line forms for listings
var toolSummaries = map[string]string{
	GrantGet:              "Load a grant record with its questions and answers",
	GrantSave:             "Create or update a grant record",
	GrantFillWeb:          "Fill the grant's web form with its answers",
	GrantExportPDF:        "Fill the grant's source PDF and return a download link",
	GrantPDFFields:        "List the form fields of a PDF",
	GrantExtractQuestions: "Extract questions from the grant's document or web form",
	GrantGenerateDrafts:   "Draft answers from the organization profile",
	ProfileGet:            "Load the organization profile",
	ProfileSave:           "Create or update the organization profile",
	GrantServerInfo:       "Describe the server and its tools",
}

// GetToolDescription returns the comprehensive description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetToolSummary returns the one-line description for a tool
func GetToolSummary(toolName string) string {
	if s, exists := toolSummaries[toolName]; exists {
		return s
	}
	return GetToolDescription(toolName)
}

// GetAllToolNames returns a list of all available tool names
func GetAllToolNames() []string {
	var names []string
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	return names
}
