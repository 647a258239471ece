package sqlinline

const QInsertResult = `--sql 3c1dfc4e-c55b-4e80-bccb-635375565390
insert into generation_results (id, generation_id, prompt_id, prompt_text, url, created_at)
values ($1::text, $2::text, $3::text, $4::text, $5::text, $6::timestamptz);
`

const QSelectResultByID = `--sql 1386069b-b9b7-4894-8725-447b7b825430
select id, generation_id, prompt_id, prompt_text, url, created_at
from generation_results
where id = $1::text;
`

const QListResultsByGeneration = `--sql 284edbc2-22c4-4521-bc39-8fb9d679250e
select id, generation_id, prompt_id, prompt_text, url, created_at
from generation_results
where generation_id = $1::text
order by created_at desc, id asc
limit $2::int offset $3::int;
`

const QCountResultsByGeneration = `--sql 47ef7c46-478e-4af2-9eab-537ff195468e
select count(*)
from generation_results
where generation_id = $1::text;
`

const QDeleteResult = `--sql 8d269fc2-77ff-474b-b04b-99cb75c6649f
delete from generation_results
where id = $1::text;
`

const QDeleteResultsByGeneration = `--sql 2df5f22a-7636-493e-be34-8ed11ab1fef8
delete from generation_results
where generation_id = $1::text;
`
