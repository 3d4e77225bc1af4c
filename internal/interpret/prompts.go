package interpret

// mediaDescriptionPrompt instructs the model to describe each attachment in
// order. The response must be a JSON object with a "descriptions" array whose
// length matches the attachment list.
const mediaDescriptionPrompt = `You describe media attachments found on social media posts.
You receive the post text followed by a numbered list of media URLs.
Respond with JSON only, in the form:
{"descriptions": ["<one sentence describing attachment 1>", ...]}
The array must contain exactly one entry per attachment, in the same order.
Describe what the attachment most likely shows given its URL and the post context.
Do not include any other fields.`

// categorizationPrompt instructs the model to place a post in the knowledge
// base taxonomy.
const categorizationPrompt = `You organize saved social media posts into a two-level topic taxonomy.
You receive the post title, author, text and media descriptions.
Respond with JSON only, in the form:
{"category": "<broad topic>", "subcategory": "<specific topic>", "title": "<short descriptive title>"}
Category and subcategory must be short lowercase noun phrases (1-3 words).
The title must summarize the post in at most ten words.
Do not include any other fields.`
