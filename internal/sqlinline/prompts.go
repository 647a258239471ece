package sqlinline

const QInsertPrompt = `--sql de91f925-1213-44a6-afdf-e8a971ecf2e1
insert into generated_prompts (id, template_id, text, parameter_values, created_at)
values ($1::text, $2::text, $3::text, $4::jsonb, $5::timestamptz);
`

const QSelectPromptByID = `--sql 091efeb2-fb69-45a6-9815-4ae98a01572d
select id, template_id, text, parameter_values, created_at
from generated_prompts
where id = $1::text;
`

const QSelectPromptByTemplateText = `--sql d4e3b3fa-5626-4025-8e4f-add56d9d61a1
select id, template_id, text, parameter_values, created_at
from generated_prompts
where template_id = $1::text and text = $2::text;
`

const QSelectPromptsByIDs = `--sql d5d3d0e1-f7c6-4d5e-b5fb-c40287b46d80
select id, template_id, text, parameter_values, created_at
from generated_prompts
where id = any($1::text[]);
`

const QListPrompts = `--sql 275b900b-92e9-4a1d-901b-e6bf3daf7993
select id, template_id, text, parameter_values, created_at
from generated_prompts
where ($1::text = '' or template_id = $1::text)
order by created_at desc, id asc;
`

const QDeletePrompt = `--sql 3f55e630-c5d9-4874-bd51-64a64bd877f4
delete from generated_prompts
where id = $1::text;
`

const QDeletePromptsByTemplate = `--sql badf1617-2681-45bc-92fb-b217a9a5999b
delete from generated_prompts
where template_id = $1::text;
`
