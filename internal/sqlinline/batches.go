package sqlinline

const QInsertBatch = `--sql 8d26e1a4-5c7b-4f03-a9e2-0b4f6d1c3e75
insert into batches(id, account_id, name, priority, created_at)
values ($1::uuid, $2::text, $3::text, $4::smallint, $5::timestamptz);
`

const QSelectBatch = `--sql c41e9a70-2b8d-4d6f-8e15-9a3c7f0b2d64
select id::text, account_id, name, priority::int, created_at
from batches
where id = $1::uuid
limit 1;
`
