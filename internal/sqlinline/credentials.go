package sqlinline

const QSelectProviderCredential = `--sql 3c1f9b7e-52a4-4d0e-9e61-7a2b8f04c5d9
select api_key
from provider_credentials
where provider = $1::text;
`

const QUpsertProviderCredential = `--sql 9e7d2a41-0b6c-4f38-8d15-c4a7e3f96b02
insert into provider_credentials (provider, api_key, properties)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb))
on conflict (provider) do update set
    api_key = excluded.api_key,
    properties = excluded.properties,
    updated_at = now();
`

const QDeleteProviderCredential = `--sql 5a0b8c3d-e1f7-4a96-b2d4-6f9e0c7a1b35
delete from provider_credentials
where provider = $1::text;
`
