package enhance

import "fmt"

// promptEchoMarkers are the marker phrases our own templates use; a model
// echoing the prompt repeats one of these, so the checker strips them.
var promptEchoMarkers = []string{
	"TEXT TO CORRECT:",
	"BUSINESS DOCUMENT TO CORRECT:",
	"ACADEMIC DOCUMENT TO CORRECT:",
	"TECHNICAL DOCUMENT TO CORRECT:",
	"LEGAL DOCUMENT TO CORRECT:",
	"ITALIAN LITERARY TEXT TO CORRECT:",
	"LITERARY TEXT TO CORRECT:",
	"CORRECTED OUTPUT:",
	"INPUT TEXT:",
}

const commonHeader = `IMPORTANT: Your entire response MUST be ONLY the corrected text. No preambles, no explanations, no apologies, no conversational filler. Start directly with the corrected text. The text to correct is provided below the marker line.

You are a meticulous and highly accurate OCR error correction engine. Your SOLE AND ONLY task is to identify and fix OCR errors in the provided scanned text.

CRITICAL INSTRUCTIONS:
- ABSOLUTELY DO NOT analyze, interpret, summarize, rephrase, or explain the text content in any way.
- ABSOLUTELY DO NOT add any new information, opinions, or interpretations.
- ABSOLUTELY DO NOT add any introductory phrases (like "Okay, here is the corrected text:", "I understand...", "Certainly..."), concluding remarks, or any text other than the corrected OCR output.
- Your output MUST be ONLY the corrected version of the input text.
- DO NOT ask for the text; it is provided below.

DETAILED CORRECTION GUIDELINES:
1. Correct spelling mistakes that are clearly OCR errors (e.g., "lettcr" -> "letter", "num8er" -> "number").
2. Fix word segmentation problems (e.g., "wor d" -> "word", "helloworld" -> "hello world" if contextually appropriate).
3. Restore correct punctuation and capitalization where it is obviously missing or incorrect due to OCR.
4. Meticulously preserve the original paragraph structure, line breaks, and formatting.
5. DO NOT change sentence structure or word order unless it is a clear and unambiguous OCR error causing nonsensical phrasing.
6. Pay close attention to numbers, dates, and special characters, ensuring they are accurately transcribed.
7. If unsure about a correction, err on the side of preserving the original text segment.
`

const commonFooter = "\nRemember: ONLY the corrected text. Nothing else."

// SpecializedPrompt builds the correction prompt for a document type.
// Unknown types get the generic template.
func SpecializedPrompt(documentType, text string) string {
	switch documentType {
	case "business":
		return commonHeader + `
ADDITIONAL GUIDELINES FOR BUSINESS DOCUMENTS:
- PAY EXTREME ATTENTION TO: financial figures (e.g., $1,000.00), dates, proper nouns (company names, people's names), addresses, and contact information.
- Ensure consistent formatting for lists, tables, and headings.

BUSINESS DOCUMENT TO CORRECT:
` + "```\n" + text + "\n```" + commonFooter
	case "academic":
		return commonHeader + `
ADDITIONAL GUIDELINES FOR ACADEMIC DOCUMENTS:
- PAY EXTREME ATTENTION TO: citation formats, references, footnotes, technical terms, equations, mathematical notation, and scientific symbols.
- Preserve formatting of abstracts, headings, subheadings, and lists.

ACADEMIC DOCUMENT TO CORRECT:
` + "```\n" + text + "\n```" + commonFooter
	case "technical":
		return commonHeader + `
ADDITIONAL GUIDELINES FOR TECHNICAL DOCUMENTS:
- PAY EXTREME ATTENTION TO: code snippets (preserve indentation and syntax), technical terms and acronyms, equations and formulas, units of measurement, part and version numbers.
- Preserve formatting of tables and technical specifications.

TECHNICAL DOCUMENT TO CORRECT:
` + "```\n" + text + "\n```" + commonFooter
	case "legal":
		return commonHeader + `
ADDITIONAL GUIDELINES FOR LEGAL DOCUMENTS:
- PAY EXTREME ATTENTION TO: legal terminology, case citations, statutes and section numbers, names of parties and courts, dates, monetary amounts, and specific clauses.
- Preserve formatting of numbered paragraphs, indentation, and block quotes.

LEGAL DOCUMENT TO CORRECT:
` + "```\n" + text + "\n```" + commonFooter
	case "literary":
		return commonHeader + `
ADDITIONAL GUIDELINES FOR LITERARY TEXTS:
- Preserve artistic or stylistic choices in the original text (unusual formatting, dialects, poetic line breaks, intentional misspellings that are clearly part of the author's style).
- Meticulously preserve dialogue formatting (quotation marks, new lines for new speakers).

LITERARY TEXT TO CORRECT:
` + "```\n" + text + "\n```" + commonFooter
	case "italian-literary":
		return `IMPORTANT: Your entire response MUST be ONLY the corrected Italian text. No preambles, no explanations, no apologies, no conversational filler.

You are a meticulous and highly accurate OCR error correction engine, specializing in ITALIAN LITERARY TEXTS. Your SOLE AND ONLY task is to identify and fix OCR errors in the provided scanned Italian text, PRESERVING IT IN ITALIAN.

CRITICAL INSTRUCTIONS:
- ABSOLUTELY DO NOT TRANSLATE any part of the text into English or any other language. The output MUST remain in Italian.
- ABSOLUTELY DO NOT analyze, interpret, summarize, rephrase, or explain the text content in any way.
- ABSOLUTELY DO NOT add any introductory phrases (like "Certo, ecco il testo:", "Ho capito..."), concluding remarks, or any text other than the corrected Italian OCR output.

GUIDELINES:
1. Correct spelling and grammar mistakes that are clearly OCR errors in Italian (e.g., "perche" -> "perché", "un pò" -> "un po'").
2. Fix word segmentation problems (e.g., "ilsogno" -> "il sogno"). Be very careful with elisions and apostrophes.
3. Restore correct Italian accents and capitalization ("E una bella giornata" -> "È una bella giornata", "Citta" -> "Città").
4. Preserve artistic or stylistic choices, dialects, and poetic line breaks.
5. Meticulously preserve paragraph structure, line breaks, indentation, and dialogue formatting.

ITALIAN LITERARY TEXT TO CORRECT:
` + "```\n" + text + "\n```" + `
Remember: ONLY the corrected Italian text. Nothing else.`
	default:
		return commonHeader + `
TEXT TO CORRECT:
` + "```\n" + text + "\n```" + commonFooter
	}
}

// correctiveGenericPrompt re-states the single-task contract after a
// detected contract violation.
func correctiveGenericPrompt(original string) string {
	return fmt.Sprintf(`You FAILED the previous instruction. You provided analysis, summary, or explanation instead of ONLY the corrected text.
YOUR ONLY TASK IS TO CORRECT OCR ERRORS IN THE PROVIDED TEXT.
CRITICAL RULES:
1. OUTPUT ONLY THE CORRECTED TEXT.
2. DO NOT ADD ANY EXTRA WORDS, PHRASES, EXPLANATIONS, OR INTRODUCTIONS.
3. DO NOT SUMMARIZE. DO NOT ANALYZE.
4. FOCUS SOLELY ON FIXING TYPOS, WORD SEGMENTATION, AND OCR-RELATED MISTAKES.
Original OCR text that needs correction:
`+"```\n%s\n```"+`
Provide ONLY the corrected version of the above text:`, original)
}

// correctiveTranslationPrompt handles the case where the model translated
// Italian input instead of correcting it.
func correctiveTranslationPrompt(original string) string {
	return fmt.Sprintf(`CRITICAL ERROR: You have TRANSLATED the text rather than correcting OCR errors. This is wrong.
The original text is in ITALIAN and MUST remain in ITALIAN.
Your ONLY task is to fix OCR errors (typos, run-together words, missing spaces, incorrect accents/apostrophes).
DO NOT translate. DO NOT explain. DO NOT add any preamble.
Output ONLY the corrected ITALIAN text.
Original Italian OCR text to correct:
`+"```\n%s\n```"+`
Corrected Italian text ONLY:`, original)
}
