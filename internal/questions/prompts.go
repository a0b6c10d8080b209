package questions

const documentPrompt = `Analyze this part of a grant application document and extract ALL questions with their types.

For each question, determine:
1. question_text: The exact question text
2. type: one of: text, textarea, single_choice, multi_choice, yes_no, number, date
3. options: array of choices (for single_choice, multi_choice, yes_no) - keep each option under 80 characters
4. required: if marked as required
5. char_limit: if a character/word limit is mentioned

CRITICAL: Return ONLY the JSON array. No markdown, no code fences, no text before or after. Just the raw JSON array starting with [ and ending with ].

Example format:
[{"question_text":"Organization name","type":"text","required":true},{"question_text":"Select your organization type","type":"single_choice","options":["Nonprofit","For-profit","Government"]},{"question_text":"Describe your project (max 500 words)","type":"textarea","char_limit":500}]

DOCUMENT TEXT:
`

const pagePrompt = `Analyze this HTML form page and extract ALL questions with their types and options.

IMPORTANT: Look for fields in:
- Standard HTML inputs, textareas, selects
- Custom components (data-* attributes, role attributes)
- Nested structures (divs with input-like behavior)
- contenteditable elements
- ARIA-labeled elements

For each question, determine:
1. question_text: The exact question text (from labels, legends, aria-label, placeholder, or nearby text)
2. type: one of: text, textarea, single_choice, multi_choice, yes_no, number, date, other
3. options: array of choices (for single_choice, multi_choice, yes_no)
4. required: if the field is required (required attribute or aria-required)

Return ONLY a valid JSON array, no other text:
[{"question_text":"What is your organization name?","type":"text","required":true}]

HTML:
`

// itemSchema is the shape every extracted question must have
const itemSchema = `{
  "type": "object",
  "required": ["question_text"],
  "properties": {
    "question_text": {"type": "string", "minLength": 1},
    "type": {"type": "string"},
    "options": {"type": "array", "items": {"type": "string"}},
    "required": {"type": "boolean"},
    "char_limit": {"type": "integer", "minimum": 0}
  }
}`
