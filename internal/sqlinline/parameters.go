package sqlinline

const QInsertParameter = `--sql adf995dc-9743-4076-8699-16d44f37e4a0
insert into parameters (id, name, param_values, created_at, updated_at)
values ($1::text, $2::text, $3::text[], $4::timestamptz, $4::timestamptz);
`

const QUpdateParameter = `--sql 0ad16a76-27dc-4056-881c-54117662fa7c
update parameters
set name = $2::text, param_values = $3::text[], updated_at = $4::timestamptz
where id = $1::text;
`

const QSelectParameterByID = `--sql e11eb339-52df-4f94-bae5-1049656a3d38
select id, name, param_values, created_at, updated_at
from parameters
where id = $1::text;
`

const QSelectParameterByName = `--sql c9734cc2-a4bc-4919-9fb3-0d89e0289b96
select id, name, param_values, created_at, updated_at
from parameters
where name = $1::text;
`

const QSelectParametersByIDs = `--sql 635e2011-5096-4743-ae73-4592e5ed3f36
select id, name, param_values, created_at, updated_at
from parameters
where id = any($1::text[]);
`

const QListParameters = `--sql c8844851-3843-4568-b970-fb043ff0df3c
select id, name, param_values, created_at, updated_at
from parameters
order by name asc;
`

const QDeleteParameter = `--sql e4ce4914-7715-4ee4-adbc-c0afa93998a3
delete from parameters
where id = $1::text;
`
