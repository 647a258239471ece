package sqlinline

const QInsertGeneration = `--sql 41d7cf45-1a05-4458-9e5a-9a4bc6416852
insert into generations (id, name, model_id, provider, settings, status, tasks, created_at, updated_at)
values ($1::text, $2::text, $3::text, $4::text, $5::jsonb, $6::text, $7::jsonb, $8::timestamptz, $8::timestamptz);
`

const QSelectGenerationByID = `--sql 8a9aca28-8afa-4faa-a24b-979712e71ad6
select id, name, model_id, provider, settings, status, tasks, created_at, updated_at
from generations
where id = $1::text;
`

const QListGenerations = `--sql a39bbf09-4210-4185-81f4-ff41340771c1
select id, name, model_id, provider, settings, status, tasks, created_at, updated_at
from generations
order by created_at desc;
`

const QListStaleGenerations = `--sql c58836e5-344d-4f2d-8dd2-c666c486ad7f
select id, name, model_id, provider, settings, status, tasks, created_at, updated_at
from generations
where status = $1::text and updated_at < $2::timestamptz
order by updated_at asc;
`

const QDeleteGeneration = `--sql 42deb91b-886d-412e-8270-ed21f38bd4b3
delete from generations
where id = $1::text;
`

const QTransitionGenerationStatus = `--sql a8d72f33-13fe-4ee8-a8a6-09dc140a21a3
update generations
set status = $3::text, updated_at = now()
where id = $1::text and status = $2::text;
`

const QUpdateGenerationTask = `--sql bab5be27-7b7e-4e55-aa5d-6072a3a0b684
update generations
set tasks = jsonb_set(
        tasks,
        array[$2::int::text],
        ((tasks -> $2::int) - 'result_id' - 'error') || $3::jsonb
    ),
    updated_at = now()
where id = $1::text
  and $2::int >= 0
  and jsonb_array_length(tasks) > $2::int
  and ((tasks -> $2::int ->> 'status') <> 'completed' or $4::text = 'completed');
`
