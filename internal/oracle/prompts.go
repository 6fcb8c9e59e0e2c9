package oracle

const structurePrompt = "You are a parser for SME bank statements.\n\n" +
	"Task:\n" +
	"- Read the statement text below and list EVERY transaction it contains.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
	"- Output a JSON array of objects.\n\n" +
	"Each object must have these fields:\n" +
	"- \"date\": string, ISO format \"YYYY-MM-DD\"\n" +
	"- \"description\": string\n" +
	"- \"amount\": number (positive for money IN, negative for money OUT)\n" +
	"- \"balance\": number or null (running balance after the transaction)\n" +
	"- \"transaction_type\": \"credit\" or \"debit\"\n" +
	"- \"channel\": string or null (e.g. \"card\", \"transfer\", \"cash\")\n" +
	"- \"counterparty\": string or null\n\n" +
	"Rules:\n" +
	"- If the statement has separate \"paid out\" / \"paid in\" columns, convert to a single signed \"amount\".\n" +
	"- If the running balance is missing, set \"balance\" to null.\n" +
	"- Do not invent transactions that are not in the text.\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Output must begin with \"[\" and end with \"]\".\n\n" +
	"Statement text:\n"

const extractPrompt = "Transcribe the attached bank statement to plain text.\n" +
	"Keep every line of every transaction table, including dates, descriptions, amounts and balances.\n" +
	"Do not summarise, reorder or add commentary. Output the text only.\n"
