package sqlinline

const QInsertTemplate = `--sql 439825bc-30aa-45fb-9fca-ba7638d65d17
insert into prompt_templates (id, name, template, parameter_ids, created_at, updated_at)
values ($1::text, $2::text, $3::text, $4::text[], $5::timestamptz, $5::timestamptz);
`

const QUpdateTemplate = `--sql 14b93228-7ed0-4b92-878a-59c799b1bce0
update prompt_templates
set name = $2::text, template = $3::text, parameter_ids = $4::text[], updated_at = $5::timestamptz
where id = $1::text;
`

const QSelectTemplateByID = `--sql 97f8a991-d3e0-4762-8fcb-004d508bcd21
select id, name, template, parameter_ids, created_at, updated_at
from prompt_templates
where id = $1::text;
`

const QSelectTemplatesByIDs = `--sql 9de41414-bb11-4ef7-8410-acfa1224e956
select id, name, template, parameter_ids, created_at, updated_at
from prompt_templates
where id = any($1::text[]);
`

const QListTemplates = `--sql 26abde81-4723-4625-840e-6f0e052c932b
select id, name, template, parameter_ids, created_at, updated_at
from prompt_templates
order by created_at desc;
`

const QDeleteTemplate = `--sql 350ce6b4-dceb-4e40-bf82-7134adf557dd
delete from prompt_templates
where id = $1::text;
`

const QRemoveTemplateParameter = `--sql 7499b351-63e2-472f-93a2-41259d7490dc
update prompt_templates
set parameter_ids = array_remove(parameter_ids, $1::text), updated_at = now()
where $1::text = any(parameter_ids);
`
