package sqlinline

const QInsertStepEntry = `--sql 0661c5de-e7e3-42ca-b7ad-08f815d9d9f5
insert into job_step_log(
  job_id,
  seq,
  step_name,
  sub_status,
  message,
  progress,
  started_at,
  completed_at,
  error_kind,
  error_detail
)
select
  $1::uuid,
  coalesce(max(seq), 0) + 1,
  $2::text,
  $3::text,
  nullif($4::text, ''),
  $5::int,
  $6::timestamptz,
  $7::timestamptz,
  nullif($8::text, ''),
  nullif($9::text, '')
from job_step_log
where job_id = $1::uuid
returning seq;
`

const QUpdateStepProgress = `--sql ddf5ac1c-5a26-4c51-8b6e-7a1e061d891f
update job_step_log s
set progress = greatest(s.progress, $3::int)
where s.job_id = $1::uuid
  and s.step_name = $2::text
  and s.sub_status = 'started'
  and not exists (
    select 1 from job_step_log t
    where t.job_id = s.job_id
      and t.step_name = s.step_name
      and t.sub_status in ('completed', 'failed')
  );
`

const QListStepEntries = `--sql 23c65521-08bb-4bb9-84bb-df32ee2ff9a5
select
  job_id::text,
  seq,
  step_name,
  sub_status,
  coalesce(message, ''),
  progress,
  started_at,
  completed_at,
  coalesce(error_kind, ''),
  coalesce(error_detail, '')
from job_step_log
where job_id = $1::uuid
order by seq asc;
`
