package sqlinline

const QEnqueueWorkItem = `--sql 50644fd9-0d50-4061-b571-e361d1f33048
insert into generation_queue (id, dedup_key, payload, attempts, max_attempts, backoff_type, backoff_delay_ms, available_at, created_at, updated_at)
values ($1::text, $2::text, $3::jsonb, 0, $4::int, $5::text, $6::bigint, now() + ($7::bigint * interval '1 millisecond'), now(), now())
on conflict (dedup_key) do nothing;
`

const QClaimWorkItem = `--sql 19b6908a-112e-4bdf-9f06-22a73dc2ecd6
with next_item as (
    select id
    from generation_queue
    where available_at <= now()
    order by available_at asc, created_at asc
    for update skip locked
    limit 1
),
claimed as (
    update generation_queue
    set attempts = attempts + 1,
        available_at = now() + ($1::bigint * interval '1 millisecond'),
        updated_at = now()
    where id in (select id from next_item)
    returning id, dedup_key, payload, attempts, max_attempts, backoff_type, backoff_delay_ms
)
select * from claimed;
`

const QDeleteWorkItem = `--sql 9ef94597-1ee6-48ea-bb40-4f97315d4584
delete from generation_queue
where id = $1::text;
`

const QRescheduleWorkItem = `--sql 68fea445-e604-49db-8d31-ba295e46a1f7
update generation_queue
set available_at = now() + ($2::bigint * interval '1 millisecond'),
    last_error = $3::text,
    updated_at = now()
where id = $1::text;
`

const QCountWorkItems = `--sql e468a156-f184-4574-9874-86c86ff491db
select count(*)
from generation_queue;
`
