package sqlinline

const jobColumns = `
  id::text,
  account_id,
  inputs,
  settings,
  input_bytes,
  status,
  coalesce(output_ref, ''),
  output_bytes,
  coalesce(error_kind, ''),
  coalesce(error_detail, ''),
  cancel_requested,
  created_at,
  updated_at,
  processing_started_at,
  processing_completed_at,
  priority::int,
  coalesce(batch_id::text, '')`

const QInsertJob = `--sql caffae23-de3d-47ca-8692-8020ead99972
insert into jobs(
  id,
  account_id,
  inputs,
  settings,
  input_bytes,
  status,
  output_bytes,
  cancel_requested,
  created_at,
  updated_at,
  priority,
  batch_id
) values (
  $1::uuid,
  $2::text,
  $3::jsonb,
  $4::jsonb,
  $5::bigint,
  $6::text,
  0,
  false,
  $7::timestamptz,
  $7::timestamptz,
  $8::smallint,
  nullif($9::text, '')::uuid
);
`

const QSelectJob = `--sql 45ea96e4-ff9b-496e-95e8-6b430516cd47
select` + jobColumns + `
from jobs
where id = $1::uuid
limit 1;
`

// QUpdateJobStatus is a compare-and-set on the previous status ($2).
const QUpdateJobStatus = `--sql 6a3cb726-6dc3-497b-8ba9-71aa24cbd31a
update jobs set
  status = $3::text,
  output_ref = case when $3::text = 'completed' then nullif($4::text, '') else null end,
  output_bytes = case when $3::text = 'completed' then $5::bigint else 0 end,
  error_kind = case when $3::text = 'failed' then nullif($6::text, '') else null end,
  error_detail = case when $3::text = 'failed' then nullif($7::text, '') else null end,
  processing_started_at = case when $3::text = 'processing' then now() else processing_started_at end,
  processing_completed_at = case when $3::text in ('completed', 'failed') then now() else processing_completed_at end,
  updated_at = now()
where id = $1::uuid
  and status = $2::text
returning` + jobColumns + `;
`

const QClaimNextJob = `--sql bb3859dd-eb18-424b-996c-0addd9fc1b3d
with next_job as (
    select id
    from jobs
    where status = 'queued'
    order by priority asc, created_at asc
    for update skip locked
    limit 1
)
update jobs set
  status = 'processing',
  processing_started_at = now(),
  updated_at = now()
where id in (select id from next_job)
returning` + jobColumns + `;
`

const QSetJobCancelRequested = `--sql ae0f45c8-2760-40c1-a764-f3638c4280d1
update jobs
set cancel_requested = true, updated_at = now()
where id = $1::uuid;
`

const QListJobsByBatch = `--sql 3f0b7c52-9d41-4e8a-b6c2-71e5a0d9c4f8
select` + jobColumns + `
from jobs
where batch_id = $1::uuid
order by created_at asc, id asc;
`
