package sqlinline

const QEnsureAccount = `--sql b345c766-3314-47da-9c54-46dedaae9279
insert into accounts(id, tier, videos_this_month, storage_used_bytes, period_start, created_at, updated_at)
values ($1::text, $2::text, 0, 0, date_trunc('month', now()), now(), now())
on conflict (id) do nothing;
`

// QRollAccountPeriod clears the monthly counter once a new calendar month starts.
const QRollAccountPeriod = `--sql 77ec7a4a-eba5-4d6d-8dcb-c8f926cefa58
update accounts
set videos_this_month = 0,
    period_start = date_trunc('month', now()),
    updated_at = now()
where id = $1::text
  and period_start < date_trunc('month', now());
`

const QSelectAccount = `--sql 6fb001a0-e86f-49cc-b4b0-1946275d6111
select tier, videos_this_month, storage_used_bytes
from accounts
where id = $1::text
limit 1;
`

const QLockAccount = `--sql 8728a5ab-e1aa-4054-8976-1fb056dcf12d
select tier, videos_this_month, storage_used_bytes
from accounts
where id = $1::text
for update;
`

const QSelectPendingReservations = `--sql 2ba72f64-09e5-47ec-81b2-3b5afd2b5819
select count(*), coalesce(sum(bytes), 0)::bigint
from account_reservations
where account_id = $1::text
  and not committed;
`

const QInsertReservation = `--sql 58639d44-5c31-4f19-874b-e27d3e749189
insert into account_reservations(account_id, job_id, bytes, committed, created_at, updated_at)
values ($1::text, $2::uuid, $3::bigint, false, now(), now())
on conflict (account_id, job_id) do nothing;
`

// QCommitUsage counts a job exactly once; replays touch nothing.
const QCommitUsage = `--sql 753a2008-bd33-4211-a237-f513872f7c8d
with marked as (
  insert into account_reservations(account_id, job_id, bytes, committed, created_at, updated_at)
  values ($1::text, $2::uuid, $3::bigint, true, now(), now())
  on conflict (account_id, job_id) do update
    set committed = true, bytes = excluded.bytes, updated_at = now()
    where account_reservations.committed = false
  returning job_id
)
update accounts
set videos_this_month = videos_this_month + 1,
    storage_used_bytes = storage_used_bytes + $3::bigint,
    updated_at = now()
where id = $1::text
  and exists (select 1 from marked);
`

const QReleaseReservation = `--sql 6e53925a-e434-41cb-8313-e7129ec9310e
delete from account_reservations
where account_id = $1::text
  and job_id = $2::uuid
  and not committed;
`

const QSetAccountTier = `--sql a80151bf-561e-458a-b384-e30b0ec80b81
insert into accounts(id, tier, videos_this_month, storage_used_bytes, period_start, created_at, updated_at)
values ($1::text, $2::text, 0, 0, date_trunc('month', now()), now(), now())
on conflict (id) do update set
  tier = excluded.tier,
  updated_at = now();
`

const QResetMonthlyUsage = `--sql aacfde2a-4292-4629-a994-1e9e20a52c53
update accounts
set videos_this_month = 0,
    period_start = date_trunc('month', now()),
    updated_at = now()
where ($1::text = '' or id = $1::text);
`
