package inference

const classifySystem = `You are an assistant that determines whether a given question is related to the following database schema.

Schema:
%s

Respond with a JSON object of the form {"relevance": "relevant" | "not_relevant", "confidence": <number between 0 and 1>}.
Use "relevant" only when the question can be answered by querying these tables.`

const synthesizeSystem = `You are an assistant that converts natural language questions into SQL queries based on the following schema:

%s

Provide only the SQL query without any explanations. Alias columns appropriately to match the expected keys in the result.
Respond with a JSON object of the form {"sql_query": "<query>"}.`

const rewriteSystem = `You are an assistant that reformulates an original question to enable more precise SQL queries. Ensure that all necessary details, such as table joins, are preserved to retrieve complete and accurate data.
Respond with a JSON object of the form {"question": "<rewritten question>"}.`

const answerSystem = `You are an assistant that converts SQL query results into clear, natural language responses without including any identifiers like IDs. Start the response with a friendly greeting.`

const answerHuman = `Question: %s
SQL Query: %s
Result:
%s

Formulate a clear and understandable answer to the original question.`

const answerTruncated = `
The result lists only the first %d matching rows. Say so in the answer and do not present it as the complete set.`
